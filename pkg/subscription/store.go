package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists subscriptions.
type Store interface {
	// GetByProviderID returns store.ErrNotFound when no subscription has the id.
	GetByProviderID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)

	// GetCurrentForUser returns the user's subscription in a current status, or
	// the most recently updated one when none is current. Returns store.ErrNotFound
	// when the user never subscribed.
	GetCurrentForUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Save inserts or overwrites the subscription keyed by its provider id.
	Save(ctx context.Context, sub *Subscription) error

	// ListCanceledBefore returns canceled or expired subscriptions whose
	// CancelAt is at or before t.
	ListCanceledBefore(ctx context.Context, t time.Time) ([]Subscription, error)
}
