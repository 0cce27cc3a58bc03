package meeting

import (
	"github.com/Prat011/free-cluely-sub000/pkg/statemachine"
)

// State is the lifecycle position of a meeting.
type State string

const (
	StateUnstarted State = "unstarted"
	StateOpen      State = "open"
	StateClosed    State = "closed"
)

// Event drives the meeting lifecycle.
type Event string

const (
	EventStart Event = "start"
	EventEnd   Event = "end"
	EventCap   Event = "cap_reached"
)

// lifecycle is unstarted -> open -> closed. Closing a closed meeting is a no-op.
var lifecycle = statemachine.MustNew(
	statemachine.WithTransition(StateUnstarted, StateOpen, EventStart),
	statemachine.WithTransition(StateOpen, StateClosed, EventEnd),
	statemachine.WithTransition(StateOpen, StateClosed, EventCap),
	statemachine.WithTransition(StateClosed, StateClosed, EventEnd),
	statemachine.WithTransition(StateClosed, StateClosed, EventCap),
)

func closeEvent(reason EndReason) Event {
	if reason == EndReasonCapReached {
		return EventCap
	}
	return EventEnd
}
