package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
)

const userColumns = `id, current_plan, last_free_trial_started_at,
	COALESCE(billing_customer_id, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*account.User, error) {
	var u account.User
	err := row.Scan(&u.ID, &u.CurrentPlan, &u.LastFreeTrialStartedAt,
		&u.BillingCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUser provisions a billing user or refreshes its cached fields.
func (s *Store) UpsertUser(ctx context.Context, u account.User) error {
	now := s.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, current_plan, last_free_trial_started_at, billing_customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			current_plan = EXCLUDED.current_plan,
			last_free_trial_started_at = EXCLUDED.last_free_trial_started_at,
			billing_customer_id = EXCLUDED.billing_customer_id,
			updated_at = EXCLUDED.updated_at`,
		u.ID, u.CurrentPlan, u.LastFreeTrialStartedAt, u.BillingCustomerID, u.CreatedAt, now)
	return classify(err, account.ErrUserNotFound)
}

// GetUser implements account.Store.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*account.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, account.ErrUserNotFound)
	}
	return u, nil
}

// GetUserByCustomerID implements account.Store.
func (s *Store) GetUserByCustomerID(ctx context.Context, customerID string) (*account.User, error) {
	if customerID == "" {
		return nil, classify(pgx.ErrNoRows, account.ErrUserNotFound)
	}
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE billing_customer_id = $1`, customerID))
	if err != nil {
		return nil, classify(err, account.ErrUserNotFound)
	}
	return u, nil
}

// SetCurrentPlan implements account.Store.
func (s *Store) SetCurrentPlan(ctx context.Context, id uuid.UUID, planID string) error {
	return s.updateUser(ctx, `UPDATE users SET current_plan = $2, updated_at = $3 WHERE id = $1`,
		id, planID)
}

// SetBillingCustomerID implements account.Store.
func (s *Store) SetBillingCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return s.updateUser(ctx, `UPDATE users SET billing_customer_id = NULLIF($2, ''), updated_at = $3 WHERE id = $1`,
		id, customerID)
}

// MarkFreeTrialStarted implements account.Store.
func (s *Store) MarkFreeTrialStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.updateUser(ctx, `UPDATE users SET last_free_trial_started_at = $2, updated_at = $3 WHERE id = $1`,
		id, at.UTC())
}

func (s *Store) updateUser(ctx context.Context, query string, id uuid.UUID, value any) error {
	tag, err := s.pool.Exec(ctx, query, id, value, s.now().UTC())
	if err != nil {
		return classify(err, account.ErrUserNotFound)
	}
	if tag.RowsAffected() == 0 {
		return classify(pgx.ErrNoRows, account.ErrUserNotFound)
	}
	return nil
}
