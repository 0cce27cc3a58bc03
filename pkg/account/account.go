// Package account holds the per-user billing record: the cached plan, the
// free-trial timestamp and the billing provider customer id.
package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("account: user not found")
)

// User is the billing view of a product user. CurrentPlan caches the plan implied
// by the user's subscription; only billing event handling writes it.
type User struct {
	ID                     uuid.UUID
	CurrentPlan            string
	LastFreeTrialStartedAt *time.Time
	BillingCustomerID      string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Store persists users. Lookups of missing users return ErrUserNotFound joined
// with store.ErrNotFound.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByCustomerID(ctx context.Context, customerID string) (*User, error)
	SetCurrentPlan(ctx context.Context, id uuid.UUID, planID string) error
	SetBillingCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	MarkFreeTrialStarted(ctx context.Context, id uuid.UUID, at time.Time) error
}
