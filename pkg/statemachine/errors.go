package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("statemachine: transition needs from, to and event")
	ErrInvalidEvent      = errors.New("statemachine: empty event")

	// ErrNoTransition means the event is not declared for the state.
	ErrNoTransition = errors.New("statemachine: no transition")
	// ErrRejected means every declared transition was vetoed by a guard.
	ErrRejected = errors.New("statemachine: transition rejected by guards")
)

// TransitionError reports the state and event of a failed Fire. It unwraps to
// ErrNoTransition or ErrRejected.
type TransitionError struct {
	From  string
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: state %q, event %q", e.Err, e.From, e.Event)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// IsNoTransition reports whether err means the event is undeclared for the state.
func IsNoTransition(err error) bool { return errors.Is(err, ErrNoTransition) }

// IsRejected reports whether err means guards blocked the transition.
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }
