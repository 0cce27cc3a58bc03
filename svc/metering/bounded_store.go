package metering

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
	"github.com/Prat011/free-cluely-sub000/pkg/store"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

// Store is everything the engine persists. pg.Store and memstore.Store both
// implement it.
type Store interface {
	account.Store
	meeting.Store
	usage.Reader
	usage.Recorder
	subscription.Store
}

// boundedStore runs every call under its own timeout and reports expired
// deadlines as store.ErrUnavailable.
type boundedStore struct {
	next    Store
	timeout time.Duration
}

var _ Store = (*boundedStore)(nil)

func newBoundedStore(next Store, timeout time.Duration) *boundedStore {
	return &boundedStore{next: next, timeout: timeout}
}

func (b *boundedStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

func call[T any](ctx context.Context, b *boundedStore, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	v, err := fn(ctx)
	return v, store.Unavailable(err)
}

func exec(ctx context.Context, b *boundedStore, fn func(context.Context) error) error {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return store.Unavailable(fn(ctx))
}

func (b *boundedStore) GetUser(ctx context.Context, id uuid.UUID) (*account.User, error) {
	return call(ctx, b, func(ctx context.Context) (*account.User, error) { return b.next.GetUser(ctx, id) })
}

func (b *boundedStore) GetUserByCustomerID(ctx context.Context, customerID string) (*account.User, error) {
	return call(ctx, b, func(ctx context.Context) (*account.User, error) {
		return b.next.GetUserByCustomerID(ctx, customerID)
	})
}

func (b *boundedStore) SetCurrentPlan(ctx context.Context, id uuid.UUID, planID string) error {
	return exec(ctx, b, func(ctx context.Context) error { return b.next.SetCurrentPlan(ctx, id, planID) })
}

func (b *boundedStore) SetBillingCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return exec(ctx, b, func(ctx context.Context) error { return b.next.SetBillingCustomerID(ctx, id, customerID) })
}

func (b *boundedStore) MarkFreeTrialStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return exec(ctx, b, func(ctx context.Context) error { return b.next.MarkFreeTrialStarted(ctx, id, at) })
}

func (b *boundedStore) CreateOpenMeeting(ctx context.Context, m *meeting.Meeting) error {
	return exec(ctx, b, func(ctx context.Context) error { return b.next.CreateOpenMeeting(ctx, m) })
}

func (b *boundedStore) GetMeeting(ctx context.Context, id uuid.UUID) (*meeting.Meeting, error) {
	return call(ctx, b, func(ctx context.Context) (*meeting.Meeting, error) { return b.next.GetMeeting(ctx, id) })
}

func (b *boundedStore) GetOpenMeeting(ctx context.Context, userID uuid.UUID) (*meeting.Meeting, error) {
	return call(ctx, b, func(ctx context.Context) (*meeting.Meeting, error) { return b.next.GetOpenMeeting(ctx, userID) })
}

func (b *boundedStore) CloseMeeting(ctx context.Context, id uuid.UUID, endedAt time.Time, durationMinutes int64, reason meeting.EndReason) (*meeting.Meeting, bool, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	m, changed, err := b.next.CloseMeeting(ctx, id, endedAt, durationMinutes, reason)
	return m, changed, store.Unavailable(err)
}

func (b *boundedStore) ListOpenMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	return call(ctx, b, b.next.ListOpenMeetings)
}

func (b *boundedStore) MarkWarningSent(ctx context.Context, id uuid.UUID, w meeting.Warning, at time.Time) (bool, error) {
	return call(ctx, b, func(ctx context.Context) (bool, error) { return b.next.MarkWarningSent(ctx, id, w, at) })
}

func (b *boundedStore) SumMeetingMinutes(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	return call(ctx, b, func(ctx context.Context) (int64, error) {
		return b.next.SumMeetingMinutes(ctx, userID, from, to)
	})
}

func (b *boundedStore) CountMeetingsStarted(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	return call(ctx, b, func(ctx context.Context) (int64, error) {
		return b.next.CountMeetingsStarted(ctx, userID, from, to)
	})
}

func (b *boundedStore) SumAICost(ctx context.Context, userID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	return call(ctx, b, func(ctx context.Context) (decimal.Decimal, error) {
		return b.next.SumAICost(ctx, userID, from, to)
	})
}

func (b *boundedStore) InsertAIUsage(ctx context.Context, rec *usage.AIUsageRecord) error {
	return exec(ctx, b, func(ctx context.Context) error { return b.next.InsertAIUsage(ctx, rec) })
}

func (b *boundedStore) GetByProviderID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	return call(ctx, b, func(ctx context.Context) (*subscription.Subscription, error) {
		return b.next.GetByProviderID(ctx, providerSubscriptionID)
	})
}

func (b *boundedStore) GetCurrentForUser(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	return call(ctx, b, func(ctx context.Context) (*subscription.Subscription, error) {
		return b.next.GetCurrentForUser(ctx, userID)
	})
}

func (b *boundedStore) Save(ctx context.Context, sub *subscription.Subscription) error {
	return exec(ctx, b, func(ctx context.Context) error { return b.next.Save(ctx, sub) })
}

func (b *boundedStore) ListCanceledBefore(ctx context.Context, t time.Time) ([]subscription.Subscription, error) {
	return call(ctx, b, func(ctx context.Context) ([]subscription.Subscription, error) {
		return b.next.ListCanceledBefore(ctx, t)
	})
}
