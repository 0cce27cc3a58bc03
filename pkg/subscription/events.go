package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/Prat011/free-cluely-sub000/pkg/plans"
)

// EventName is a normalized billing provider event.
type EventName string

const (
	EventCreated          EventName = "created"
	EventUpdated          EventName = "updated"
	EventCancelled        EventName = "cancelled"
	EventResumed          EventName = "resumed"
	EventExpired          EventName = "expired"
	EventPaused           EventName = "paused"
	EventUnpaused         EventName = "unpaused"
	EventPaymentSucceeded EventName = "payment_succeeded"
	EventPaymentFailed    EventName = "payment_failed"
)

// Payload carries the fields a billing event may report. Zero values mean the
// event did not carry the field and the stored value is kept.
type Payload struct {
	// UserID links a new subscription to a user. When zero, the user is resolved
	// from CustomerID.
	UserID     uuid.UUID
	CustomerID string
	Status     Status
	PriceID    string
	Interval   plans.Interval
	RenewAt    *time.Time
	CancelAt   *time.Time
	OccurredAt time.Time
}

// Event is a verified provider webhook normalized to an engine event.
type Event struct {
	ID                     string
	Name                   EventName
	ProviderEvent          string
	ProviderSubscriptionID string
	Payload                Payload
}

// plansTouching lists the events that may change the user's current plan.
// Pause and payment events never do.
var plansTouching = map[EventName]bool{
	EventCreated:   true,
	EventUpdated:   true,
	EventCancelled: true,
	EventExpired:   true,
	EventResumed:   true,
}
