package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/Prat011/free-cluely-sub000/pkg/plans"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusNone     Status = "none"
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusPaused   Status = "paused"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Statuses lists every known status.
var Statuses = []Status{
	StatusNone, StatusTrialing, StatusActive, StatusPastDue,
	StatusPaused, StatusCanceled, StatusExpired,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsCurrent reports whether a subscription in this status still grants its plan.
// Past due keeps access until the provider cancels.
func (s Status) IsCurrent() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusPaused:
		return true
	default:
		return false
	}
}

// IsEnded reports whether the subscription was canceled or expired.
func (s Status) IsEnded() bool {
	return s == StatusCanceled || s == StatusExpired
}

// Subscription is a user's subscription at the billing provider. The provider
// subscription id is the idempotency key for every billing event.
type Subscription struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	ProviderSubscriptionID string
	ProviderCustomerID     string
	PlanID                 string
	Status                 Status
	BillingInterval        plans.Interval
	RenewAt                *time.Time // anchor of the next renewal
	CancelAt               *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Anchor returns the renewal anchor and interval used to resolve billing periods.
// A nil subscription yields no anchor.
func (s *Subscription) Anchor() (*time.Time, plans.Interval) {
	if s == nil {
		return nil, plans.IntervalNone
	}
	return s.RenewAt, s.BillingInterval
}

// CancelPending reports whether the subscription is canceled with an effective
// date still in the future at now.
func (s *Subscription) CancelPending(now time.Time) bool {
	return s.Status == StatusCanceled && s.CancelAt != nil && now.Before(*s.CancelAt)
}
