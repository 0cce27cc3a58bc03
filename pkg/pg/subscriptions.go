package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/plans"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
)

const subscriptionColumns = `id, user_id, provider_subscription_id, provider_customer_id, plan_id,
	status, billing_interval, renew_at, cancel_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		sub              subscription.Subscription
		status, interval string
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.ProviderSubscriptionID, &sub.ProviderCustomerID,
		&sub.PlanID, &status, &interval, &sub.RenewAt, &sub.CancelAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.Status = subscription.Status(status)
	sub.BillingInterval = plans.Interval(interval)
	return &sub, nil
}

func statusesWhere(keep func(subscription.Status) bool) []string {
	var out []string
	for _, st := range subscription.Statuses {
		if keep(st) {
			out = append(out, string(st))
		}
	}
	return out
}

var (
	currentStatuses = statusesWhere(subscription.Status.IsCurrent)
	endedStatuses   = statusesWhere(subscription.Status.IsEnded)
)

// GetByProviderID implements subscription.Store.
func (s *Store) GetByProviderID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_subscription_id = $1`,
		providerSubscriptionID))
	if err != nil {
		return nil, classify(err, subscription.ErrSubscriptionNotFound)
	}
	return sub, nil
}

// GetCurrentForUser implements subscription.Store.
func (s *Store) GetCurrentForUser(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY (status = ANY($2)) DESC, updated_at DESC
		LIMIT 1`,
		userID, currentStatuses))
	if err != nil {
		return nil, classify(err, subscription.ErrSubscriptionNotFound)
	}
	return sub, nil
}

// Save implements subscription.Store. A conflicting provider id keeps the stored
// id and created_at; sub is updated with them.
func (s *Store) Save(ctx context.Context, sub *subscription.Subscription) error {
	if sub.ProviderSubscriptionID == "" {
		return subscription.ErrMissingSubscriptionID
	}
	now := s.now().UTC()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (provider_subscription_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			provider_customer_id = EXCLUDED.provider_customer_id,
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			billing_interval = EXCLUDED.billing_interval,
			renew_at = EXCLUDED.renew_at,
			cancel_at = EXCLUDED.cancel_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		sub.ID, sub.UserID, sub.ProviderSubscriptionID, sub.ProviderCustomerID, sub.PlanID,
		string(sub.Status), string(sub.BillingInterval), sub.RenewAt, sub.CancelAt,
		sub.CreatedAt.UTC(), sub.UpdatedAt.UTC(),
	).Scan(&sub.ID, &sub.CreatedAt)
	return classify(err, account.ErrUserNotFound)
}

// ListCanceledBefore implements subscription.Store.
func (s *Store) ListCanceledBefore(ctx context.Context, t time.Time) ([]subscription.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = ANY($1) AND cancel_at IS NOT NULL AND cancel_at <= $2
		ORDER BY cancel_at`,
		endedStatuses, t.UTC())
	if err != nil {
		return nil, classify(err, nil)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (subscription.Subscription, error) {
		sub, err := scanSubscription(row)
		if err != nil {
			return subscription.Subscription{}, err
		}
		return *sub, nil
	})
	if err != nil {
		return nil, classify(err, nil)
	}
	return out, nil
}
