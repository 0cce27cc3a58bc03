package statemachine

import (
	"context"
	"fmt"
)

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard[S, E ~string] func(ctx context.Context, from S, event E, data any) bool

// Action executes side effects during a transition. Returning an error prevents the transition.
type Action[S, E ~string] func(ctx context.Context, from, to S, event E, data any) error

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition[S, E ~string] struct {
	From     S
	To       S
	Event    E
	Wildcard bool           // matches any From state
	Guards   []Guard[S, E]  // All must pass for transition to proceed
	Actions  []Action[S, E] // Executed in order before the new state is returned
}

// Table is an immutable transition table. It holds no current state: callers pass the
// state loaded from their own records and persist the state Fire returns.
type Table[S, E ~string] struct {
	transitions map[S]map[E][]Transition[S, E]
	wildcards   map[E][]Transition[S, E]
}

func newTable[S, E ~string]() *Table[S, E] {
	return &Table[S, E]{
		transitions: make(map[S]map[E][]Transition[S, E]),
		wildcards:   make(map[E][]Transition[S, E]),
	}
}

func (t *Table[S, E]) add(tr Transition[S, E]) error {
	if tr.Event == "" || tr.To == "" || (!tr.Wildcard && tr.From == "") {
		return ErrInvalidTransition
	}

	if tr.Wildcard {
		t.wildcards[tr.Event] = append(t.wildcards[tr.Event], tr)
		return nil
	}

	if _, ok := t.transitions[tr.From]; !ok {
		t.transitions[tr.From] = make(map[E][]Transition[S, E])
	}
	// Multiple transitions allowed for same from/event to support guard-based branching
	t.transitions[tr.From][tr.Event] = append(t.transitions[tr.From][tr.Event], tr)
	return nil
}

// candidates returns explicit transitions first, then wildcard ones.
func (t *Table[S, E]) candidates(from S, event E) []Transition[S, E] {
	var out []Transition[S, E]
	if byEvent, ok := t.transitions[from]; ok {
		out = append(out, byEvent[event]...)
	}
	return append(out, t.wildcards[event]...)
}

func (t *Table[S, E]) match(ctx context.Context, from S, event E, data any) (*Transition[S, E], error) {
	if event == "" {
		return nil, ErrInvalidEvent
	}

	candidates := t.candidates(from, event)
	if len(candidates) == 0 {
		return nil, &TransitionError{From: string(from), Event: string(event), Err: ErrNoTransition}
	}

	// First transition with passing guards wins (enables priority ordering)
	for i, tr := range candidates {
		passed := true
		for _, guard := range tr.Guards {
			if guard != nil && !guard(ctx, from, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return &candidates[i], nil
		}
	}

	return nil, &TransitionError{From: string(from), Event: string(event), Err: ErrRejected}
}

// Fire resolves the transition for event from the given state, runs its actions and
// returns the target state. On any error the caller must keep the original state.
func (t *Table[S, E]) Fire(ctx context.Context, from S, event E, data any) (S, error) {
	tr, err := t.match(ctx, from, event, data)
	if err != nil {
		return from, err
	}

	for _, action := range tr.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, from, tr.To, event, data); err != nil {
			return from, fmt.Errorf("action failed: %w", err)
		}
	}

	return tr.To, nil
}

// Target returns the state Fire would move to, without running actions.
func (t *Table[S, E]) Target(ctx context.Context, from S, event E, data any) (S, bool) {
	tr, err := t.match(ctx, from, event, data)
	if err != nil {
		return from, false
	}
	return tr.To, true
}

// CanFire reports whether any transition for event would be accepted from the given state.
func (t *Table[S, E]) CanFire(ctx context.Context, from S, event E, data any) bool {
	_, ok := t.Target(ctx, from, event, data)
	return ok
}

// Handles reports whether the table declares at least one transition for event.
func (t *Table[S, E]) Handles(event E) bool {
	if len(t.wildcards[event]) > 0 {
		return true
	}
	for _, byEvent := range t.transitions {
		if len(byEvent[event]) > 0 {
			return true
		}
	}
	return false
}
