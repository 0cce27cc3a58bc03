package subscription

import (
	"context"

	"github.com/Prat011/free-cluely-sub000/pkg/statemachine"
)

type (
	transitionOption = statemachine.TransitionOption[Status, EventName]
	tableOption      = statemachine.Option[Status, EventName]
)

// reports matches when the payload reports status s. An event without a status
// matches fallback.
func reports(s Status, fallback func(from Status) Status) transitionOption {
	return statemachine.WithGuard[Status, EventName](func(_ context.Context, from Status, _ EventName, data any) bool {
		p, _ := data.(*Payload)
		if p != nil && p.Status != "" {
			return p.Status == s
		}
		return fallback(from) == s
	})
}

func defaultActive(Status) Status { return StatusActive }
func keepCurrent(from Status) Status { return from }

// reportedTransitions adds one wildcard transition per status for an event
// whose target is whatever the provider reports.
func reportedTransitions(event EventName, fallback func(Status) Status) []tableOption {
	opts := make([]tableOption, 0, len(Statuses))
	for _, s := range Statuses {
		opts = append(opts, statemachine.WithAnyTransition(s, event, reports(s, fallback)))
	}
	return opts
}

func newMachine() *statemachine.Table[Status, EventName] {
	opts := []tableOption{
		statemachine.WithAnyTransition(StatusCanceled, EventCancelled),
		statemachine.WithAnyTransition(StatusExpired, EventExpired),
		statemachine.WithAnyTransition(StatusActive, EventResumed),

		statemachine.WithTransition(StatusTrialing, StatusPaused, EventPaused),
		statemachine.WithTransition(StatusActive, StatusPaused, EventPaused),
		statemachine.WithTransition(StatusPastDue, StatusPaused, EventPaused),
		statemachine.WithTransition(StatusPaused, StatusPaused, EventPaused),
		statemachine.WithTransition(StatusPaused, StatusActive, EventUnpaused),
		statemachine.WithTransition(StatusActive, StatusActive, EventUnpaused),

		statemachine.WithTransition(StatusTrialing, StatusPastDue, EventPaymentFailed),
		statemachine.WithTransition(StatusActive, StatusPastDue, EventPaymentFailed),
		statemachine.WithTransition(StatusPastDue, StatusPastDue, EventPaymentFailed),

		statemachine.WithTransition(StatusPastDue, StatusActive, EventPaymentSucceeded),
		statemachine.WithTransition(StatusTrialing, StatusActive, EventPaymentSucceeded),
		statemachine.WithTransition(StatusActive, StatusActive, EventPaymentSucceeded),
	}
	opts = append(opts, reportedTransitions(EventCreated, defaultActive)...)
	opts = append(opts, reportedTransitions(EventUpdated, keepCurrent)...)
	return statemachine.MustNew(opts...)
}

var machine = newMachine()
