package pg

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

var (
	_ account.Store         = (*Store)(nil)
	_ meeting.Store         = (*Store)(nil)
	_ usage.Reader          = (*Store)(nil)
	_ usage.Recorder        = (*Store)(nil)
	_ subscription.Store    = (*Store)(nil)
	_ notifications.Storage = (*Store)(nil)
)

// Store implements every engine store on top of a pgx pool. Atomicity rules
// (one open meeting per user, compare-and-set closes and warnings, upserts by
// provider subscription id) are enforced by the schema and single statements.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source for updated_at stamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wraps pool. The schema must be migrated with Migrate first.
func NewStore(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	if pool == nil {
		panic("pg: pool is required")
	}
	s := &Store{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
