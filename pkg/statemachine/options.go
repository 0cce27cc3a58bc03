package statemachine

import (
	"fmt"
)

// Option configures a transition table during construction.
type Option[S, E ~string] func(*Table[S, E]) error

// TransitionOption configures a single transition with guards and actions.
type TransitionOption[S, E ~string] func(*Transition[S, E])

// New builds a transition table from the given options.
func New[S, E ~string](opts ...Option[S, E]) (*Table[S, E], error) {
	t := newTable[S, E]()
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is like New but panics on an invalid definition.
func MustNew[S, E ~string](opts ...Option[S, E]) *Table[S, E] {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create transition table: %v", err))
	}
	return t
}

// WithTransition adds a transition from a specific state.
func WithTransition[S, E ~string](from, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(t *Table[S, E]) error {
		tr := Transition[S, E]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&tr)
		}
		if err := t.add(tr); err != nil {
			return fmt.Errorf("transition %s->%s on %s: %w", from, to, event, err)
		}
		return nil
	}
}

// WithAnyTransition adds a transition that applies from every state. Explicit
// transitions declared for a state take priority over wildcard ones.
func WithAnyTransition[S, E ~string](to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(t *Table[S, E]) error {
		tr := Transition[S, E]{To: to, Event: event, Wildcard: true}
		for _, opt := range opts {
			opt(&tr)
		}
		if err := t.add(tr); err != nil {
			return fmt.Errorf("transition *->%s on %s: %w", to, event, err)
		}
		return nil
	}
}

// WithGuard adds a guard to a transition.
func WithGuard[S, E ~string](guard Guard[S, E]) TransitionOption[S, E] {
	return func(tr *Transition[S, E]) {
		if guard != nil {
			tr.Guards = append(tr.Guards, guard)
		}
	}
}

// WithAction adds an action to a transition.
func WithAction[S, E ~string](action Action[S, E]) TransitionOption[S, E] {
	return func(tr *Transition[S, E]) {
		if action != nil {
			tr.Actions = append(tr.Actions, action)
		}
	}
}
