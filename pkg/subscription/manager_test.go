package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/logger"
	"github.com/Prat011/free-cluely-sub000/pkg/memstore"
	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
	"github.com/Prat011/free-cluely-sub000/pkg/plans"
	"github.com/Prat011/free-cluely-sub000/pkg/store"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
)

var t0 = time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Notification
}

func (r *recordingNotifier) Send(_ context.Context, n notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func testCatalog(t *testing.T) *plans.Catalog {
	t.Helper()
	c, err := plans.NewCatalog([]plans.Plan{
		{ID: "free", Name: "Free", MaxMinutesPerMonth: plans.Unlimited, MaxMinutesPerMeeting: 15, MaxMeetingsPerRollingWeek: 1, Interval: plans.IntervalNone},
		{ID: "basic", Name: "Basic", Rank: 1, MonthlyRevenue: decimal.NewFromInt(9), MaxMinutesPerMonth: 100, MaxMinutesPerMeeting: 60, MaxMeetingsPerRollingWeek: plans.Unlimited, Interval: plans.IntervalMonthly, ProviderPriceIDs: []string{"pri_basic"}},
		{ID: "max", Name: "Max", Rank: 2, MonthlyRevenue: decimal.NewFromInt(30), MaxMinutesPerMonth: plans.Unlimited, MaxMinutesPerMeeting: 240, MaxMeetingsPerRollingWeek: plans.Unlimited, Interval: plans.IntervalYearly, ProviderPriceIDs: []string{"pri_max"}},
	})
	require.NoError(t, err)
	return c
}

type fixture struct {
	store    *memstore.Store
	manager  *subscription.Manager
	clock    *clock
	notifier *recordingNotifier
	userID   uuid.UUID
}

func newFixture(t *testing.T, opts ...subscription.Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		clock:    &clock{now: t0},
		notifier: &recordingNotifier{},
		userID:   uuid.New(),
	}
	f.store.PutUser(account.User{ID: f.userID, CurrentPlan: "free"})
	opts = append([]subscription.Option{
		subscription.WithClock(f.clock.Now),
		subscription.WithNotifier(f.notifier),
		subscription.WithLogger(logger.Discard()),
	}, opts...)
	f.manager = subscription.NewManager(f.store, f.store, testCatalog(t), opts...)
	return f
}

func (f *fixture) apply(t *testing.T, event subscription.EventName, id string, p subscription.Payload) {
	t.Helper()
	require.NoError(t, f.manager.ApplyBillingEvent(context.Background(), string(event), id, p))
}

func (f *fixture) plan(t *testing.T) string {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), f.userID)
	require.NoError(t, err)
	return u.CurrentPlan
}

func (f *fixture) sub(t *testing.T, id string) *subscription.Subscription {
	t.Helper()
	s, err := f.store.GetByProviderID(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (f *fixture) create(t *testing.T, id, price string) {
	t.Helper()
	renew := t0.AddDate(0, 1, 0)
	f.apply(t, subscription.EventCreated, id, subscription.Payload{
		UserID:     f.userID,
		CustomerID: "ctm_01",
		PriceID:    price,
		RenewAt:    &renew,
	})
}

func ptr[T any](v T) *T { return &v }

func TestApplyBillingEventCreated(t *testing.T) {
	t.Parallel()

	t.Run("creates the subscription and sets the user plan", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")

		sub := f.sub(t, "sub_01")
		assert.Equal(t, f.userID, sub.UserID)
		assert.Equal(t, "basic", sub.PlanID)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, plans.IntervalMonthly, sub.BillingInterval)
		assert.Equal(t, "ctm_01", sub.ProviderCustomerID)
		assert.Equal(t, t0.AddDate(0, 1, 0), *sub.RenewAt)

		u, err := f.store.GetUser(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, "basic", u.CurrentPlan)
		assert.Equal(t, "ctm_01", u.BillingCustomerID)

		require.Len(t, f.notifier.sent, 1)
		assert.Equal(t, notifications.KindPlanChanged, f.notifier.sent[0].Kind)
	})

	t.Run("replaying created converges", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")
		first := f.sub(t, "sub_01")

		f.clock.Set(t0.Add(time.Minute))
		f.create(t, "sub_01", "pri_basic")
		second := f.sub(t, "sub_01")

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, first.PlanID, second.PlanID)
		assert.Equal(t, "basic", f.plan(t))
		assert.Len(t, f.notifier.sent, 1, "no second plan change")
	})

	t.Run("reported status wins over the active default", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.apply(t, subscription.EventCreated, "sub_01", subscription.Payload{
			UserID: f.userID, PriceID: "pri_max", Status: subscription.StatusTrialing,
		})
		sub := f.sub(t, "sub_01")
		assert.Equal(t, subscription.StatusTrialing, sub.Status)
		assert.Equal(t, plans.IntervalYearly, sub.BillingInterval)
		assert.Equal(t, "max", f.plan(t))
	})

	t.Run("user resolved from customer id", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		require.NoError(t, f.store.SetBillingCustomerID(context.Background(), f.userID, "ctm_known"))

		f.apply(t, subscription.EventCreated, "sub_01", subscription.Payload{CustomerID: "ctm_known", PriceID: "pri_basic"})
		assert.Equal(t, f.userID, f.sub(t, "sub_01").UserID)
	})

	t.Run("unresolvable user is ignored", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.apply(t, subscription.EventCreated, "sub_01", subscription.Payload{CustomerID: "ctm_nobody", PriceID: "pri_basic"})

		_, err := f.store.GetByProviderID(context.Background(), "sub_01")
		assert.True(t, store.IsNotFound(err))
	})

	t.Run("unmapped price on creation is a configuration error", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		err := f.manager.ApplyBillingEvent(context.Background(), "created", "sub_01", subscription.Payload{
			UserID: f.userID, PriceID: "pri_unknown",
		})
		require.ErrorIs(t, err, plans.ErrUnknownPrice)
		assert.ErrorIs(t, err, subscription.ErrFailedToApplyEvent)
		assert.Equal(t, "free", f.plan(t))
	})
}

func TestApplyBillingEventLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("updated overwrites status and keeps plan without a price", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")

		cancelAt := t0.AddDate(0, 0, 20)
		f.apply(t, subscription.EventUpdated, "sub_01", subscription.Payload{Status: subscription.StatusPastDue, CancelAt: &cancelAt})
		sub := f.sub(t, "sub_01")
		assert.Equal(t, subscription.StatusPastDue, sub.Status)
		assert.Equal(t, "basic", sub.PlanID)
		assert.Equal(t, cancelAt, *sub.CancelAt)

		f.apply(t, subscription.EventUpdated, "sub_01", subscription.Payload{})
		sub = f.sub(t, "sub_01")
		assert.Equal(t, subscription.StatusPastDue, sub.Status, "no reported status keeps the current one")
		assert.Nil(t, sub.CancelAt)
	})

	t.Run("updated with a new price changes plan", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")

		f.apply(t, subscription.EventUpdated, "sub_01", subscription.Payload{PriceID: "pri_unknown"})
		assert.Equal(t, "basic", f.plan(t))

		f.apply(t, subscription.EventUpdated, "sub_01", subscription.Payload{PriceID: "pri_max"})
		assert.Equal(t, "max", f.sub(t, "sub_01").PlanID)
		assert.Equal(t, "max", f.plan(t))
	})

	t.Run("cancelled downgrades immediately by default", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")

		f.apply(t, subscription.EventCancelled, "sub_01", subscription.Payload{CancelAt: ptr(t0.AddDate(0, 0, 15))})
		assert.Equal(t, subscription.StatusCanceled, f.sub(t, "sub_01").Status)
		assert.Equal(t, "free", f.plan(t))
	})

	t.Run("expired downgrades", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")

		f.apply(t, subscription.EventExpired, "sub_01", subscription.Payload{})
		sub := f.sub(t, "sub_01")
		assert.Equal(t, subscription.StatusExpired, sub.Status)
		assert.Equal(t, t0, *sub.CancelAt)
		assert.Equal(t, "free", f.plan(t))
	})

	t.Run("pause and unpause keep the plan", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")

		f.apply(t, subscription.EventPaused, "sub_01", subscription.Payload{})
		assert.Equal(t, subscription.StatusPaused, f.sub(t, "sub_01").Status)
		assert.Equal(t, "basic", f.plan(t))

		f.apply(t, subscription.EventUnpaused, "sub_01", subscription.Payload{})
		assert.Equal(t, subscription.StatusActive, f.sub(t, "sub_01").Status)
		assert.Equal(t, "basic", f.plan(t))
	})

	t.Run("payment failure keeps access until cancellation", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")

		f.apply(t, subscription.EventPaymentFailed, "sub_01", subscription.Payload{})
		assert.Equal(t, subscription.StatusPastDue, f.sub(t, "sub_01").Status)
		assert.Equal(t, "basic", f.plan(t))

		renew := t0.AddDate(0, 2, 0)
		f.apply(t, subscription.EventPaymentSucceeded, "sub_01", subscription.Payload{RenewAt: &renew})
		sub := f.sub(t, "sub_01")
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, renew, *sub.RenewAt)
	})

	t.Run("resumed restores the subscription plan", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")
		f.apply(t, subscription.EventCancelled, "sub_01", subscription.Payload{})
		require.Equal(t, "free", f.plan(t))

		f.apply(t, subscription.EventResumed, "sub_01", subscription.Payload{})
		sub := f.sub(t, "sub_01")
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Nil(t, sub.CancelAt)
		assert.Equal(t, "basic", f.plan(t))
	})

	t.Run("payment events do not revive a canceled subscription", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")
		f.apply(t, subscription.EventCancelled, "sub_01", subscription.Payload{})

		f.apply(t, subscription.EventPaymentSucceeded, "sub_01", subscription.Payload{})
		f.apply(t, subscription.EventUnpaused, "sub_01", subscription.Payload{})
		assert.Equal(t, subscription.StatusCanceled, f.sub(t, "sub_01").Status)
		assert.Equal(t, "free", f.plan(t))
	})

	t.Run("unknown event name is a logged no-op", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_01", "pri_basic")
		require.NoError(t, f.manager.ApplyBillingEvent(ctx, "subscription_teleported", "sub_01", subscription.Payload{}))
		assert.Equal(t, subscription.StatusActive, f.sub(t, "sub_01").Status)
	})

	t.Run("cancelled for an unknown subscription is a logged no-op", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		require.NoError(t, f.manager.ApplyBillingEvent(ctx, "cancelled", "sub_missing", subscription.Payload{}))

		_, err := f.store.GetByProviderID(ctx, "sub_missing")
		assert.True(t, store.IsNotFound(err))
		assert.Equal(t, "free", f.plan(t))
	})

	t.Run("missing subscription id is an error", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		err := f.manager.ApplyBillingEvent(ctx, "cancelled", "", subscription.Payload{})
		require.ErrorIs(t, err, subscription.ErrMissingSubscriptionID)
	})

	t.Run("ending an old subscription keeps the newer plan", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.create(t, "sub_old", "pri_basic")
		f.clock.Set(t0.Add(time.Hour))
		f.create(t, "sub_new", "pri_max")
		require.Equal(t, "max", f.plan(t))

		f.apply(t, subscription.EventExpired, "sub_old", subscription.Payload{})
		assert.Equal(t, "max", f.plan(t))
	})
}

func TestDowngradeAtCancelAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, subscription.WithDowngradePolicy(subscription.DowngradeAtCancelAt))
	f.create(t, "sub_01", "pri_basic")

	cancelAt := t0.AddDate(0, 0, 10)
	f.apply(t, subscription.EventCancelled, "sub_01", subscription.Payload{CancelAt: &cancelAt})
	assert.Equal(t, "basic", f.plan(t), "paid plan kept until cancel date")

	res, err := f.manager.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, subscription.ReconcileResult{}, res)

	f.clock.Set(cancelAt)
	res, err = f.manager.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, subscription.ReconcileResult{Checked: 1, Downgraded: 1}, res)
	assert.Equal(t, "free", f.plan(t))

	res, err = f.manager.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, subscription.ReconcileResult{Checked: 1}, res)
}

func TestParseDowngradePolicy(t *testing.T) {
	t.Parallel()

	p, err := subscription.ParseDowngradePolicy("")
	require.NoError(t, err)
	assert.Equal(t, subscription.DowngradeImmediately, p)

	p, err = subscription.ParseDowngradePolicy(" AT_CANCEL_AT ")
	require.NoError(t, err)
	assert.Equal(t, subscription.DowngradeAtCancelAt, p)

	_, err = subscription.ParseDowngradePolicy("never")
	require.ErrorIs(t, err, subscription.ErrInvalidDowngradePolicy)
}

func TestApplyBillingEventSerializesPerSubscription(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.create(t, "sub_01", "pri_basic")

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event := subscription.EventPaused
			if i%2 == 0 {
				event = subscription.EventUnpaused
			}
			assert.NoError(t, f.manager.ApplyBillingEvent(context.Background(), string(event), "sub_01", subscription.Payload{}))
		}()
	}
	wg.Wait()

	status := f.sub(t, "sub_01").Status
	assert.Contains(t, []subscription.Status{subscription.StatusActive, subscription.StatusPaused}, status)
	assert.Equal(t, "basic", f.plan(t))
}

func TestApplyBillingEventLockTimeoutIsRetryable(t *testing.T) {
	t.Parallel()

	locker := subscription.NewMemoryLocker()
	f := newFixture(t, subscription.WithLocker(locker))
	f.create(t, "sub_01", "pri_basic")

	unlock, err := locker.Lock(context.Background(), "sub_01")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = f.manager.ApplyBillingEvent(ctx, string(subscription.EventPaused), "sub_01", subscription.Payload{})
	require.ErrorIs(t, err, subscription.ErrFailedToAcquireLock)
	assert.True(t, store.IsRetryable(err))
	assert.Equal(t, subscription.StatusActive, f.sub(t, "sub_01").Status)
}
