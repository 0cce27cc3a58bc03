package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
	"github.com/Prat011/free-cluely-sub000/pkg/memstore"
	"github.com/Prat011/free-cluely-sub000/pkg/store"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

var t0 = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func TestUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New(memstore.WithClock(func() time.Time { return t0 }))
	id := uuid.New()
	s.PutUser(account.User{ID: id, CurrentPlan: "free"})

	require.NoError(t, s.SetCurrentPlan(ctx, id, "pro"))
	require.NoError(t, s.SetBillingCustomerID(ctx, id, "ctm_1"))
	require.NoError(t, s.MarkFreeTrialStarted(ctx, id, t0))

	u, err := s.GetUserByCustomerID(ctx, "ctm_1")
	require.NoError(t, err)
	assert.Equal(t, "pro", u.CurrentPlan)
	assert.Equal(t, t0, *u.LastFreeTrialStartedAt)

	_, err = s.GetUser(ctx, uuid.New())
	require.ErrorIs(t, err, account.ErrUserNotFound)
	assert.True(t, store.IsNotFound(err))

	err = s.SetCurrentPlan(ctx, uuid.New(), "pro")
	assert.True(t, store.IsNotFound(err))
}

func TestMeetings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()
	userID := uuid.New()

	m := &meeting.Meeting{ID: uuid.New(), UserID: userID, MaxMinutes: 15, StartedAt: t0}
	require.NoError(t, s.CreateOpenMeeting(ctx, m))

	err := s.CreateOpenMeeting(ctx, &meeting.Meeting{ID: uuid.New(), UserID: userID, MaxMinutes: 15, StartedAt: t0})
	require.ErrorIs(t, err, store.ErrConflict)

	fired, err := s.MarkWarningSent(ctx, m.ID, meeting.WarningFiveMinutes, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, fired)
	fired, err = s.MarkWarningSent(ctx, m.ID, meeting.WarningFiveMinutes, t0.Add(11*time.Minute))
	require.NoError(t, err)
	assert.False(t, fired)

	closed, changed, err := s.CloseMeeting(ctx, m.ID, t0.Add(12*time.Minute), 12, meeting.EndReasonUser)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(12), *closed.DurationMinutes)

	again, changed, err := s.CloseMeeting(ctx, m.ID, t0.Add(20*time.Minute), 20, meeting.EndReasonCapReached)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(12), *again.DurationMinutes)
	assert.Equal(t, meeting.EndReasonUser, again.EndReason)

	fired, err = s.MarkWarningSent(ctx, m.ID, meeting.WarningOneMinute, t0.Add(13*time.Minute))
	require.NoError(t, err)
	assert.False(t, fired, "closed meetings are never warned")

	_, err = s.GetOpenMeeting(ctx, userID)
	assert.True(t, store.IsNotFound(err))

	open, err := s.ListOpenMeetings(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	require.NoError(t, s.CreateOpenMeeting(ctx, &meeting.Meeting{ID: uuid.New(), UserID: userID, MaxMinutes: 15, StartedAt: t0.Add(time.Hour)}))
}

func TestMeetingRecordsAreCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()
	m := &meeting.Meeting{ID: uuid.New(), UserID: uuid.New(), MaxMinutes: 15, StartedAt: t0}
	require.NoError(t, s.CreateOpenMeeting(ctx, m))

	got, err := s.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	ended := t0
	got.EndedAt = &ended

	again, err := s.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, again.IsOpen())
}

func TestUsageAggregates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()
	userID := uuid.New()
	from, to := t0, t0.AddDate(0, 1, 0)

	add := func(start time.Time, minutes int64) {
		m := &meeting.Meeting{ID: uuid.New(), UserID: userID, MaxMinutes: 240, StartedAt: start}
		require.NoError(t, s.CreateOpenMeeting(ctx, m))
		_, _, err := s.CloseMeeting(ctx, m.ID, start.Add(time.Duration(minutes)*time.Minute), minutes, meeting.EndReasonUser)
		require.NoError(t, err)
	}
	// starts before the range, ends inside it
	add(t0.Add(-30*time.Minute), 40)
	// starts inside, ends exactly at the exclusive end
	add(t0.AddDate(0, 1, 0).Add(-time.Minute), 1)
	add(t0.AddDate(0, 0, 3), 25)

	minutes, err := s.SumMeetingMinutes(ctx, userID, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(65), minutes)

	count, err := s.CountMeetingsStarted(ctx, userID, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	for _, rec := range []usage.AIUsageRecord{
		{ID: uuid.New(), UserID: userID, CreatedAt: from, CostUSD: decimal.RequireFromString("0.10")},
		{ID: uuid.New(), UserID: userID, CreatedAt: to, CostUSD: decimal.RequireFromString("5")},
		{ID: uuid.New(), UserID: uuid.New(), CreatedAt: from, CostUSD: decimal.RequireFromString("7")},
	} {
		require.NoError(t, s.InsertAIUsage(ctx, &rec))
	}
	cost, err := s.SumAICost(ctx, userID, from, to)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.10").Equal(cost))
}

func TestSubscriptions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()
	userID := uuid.New()

	first := &subscription.Subscription{
		ID: uuid.New(), UserID: userID, ProviderSubscriptionID: "sub_1",
		Status: subscription.StatusExpired, CancelAt: &t0, UpdatedAt: t0.Add(2 * time.Hour),
	}
	second := &subscription.Subscription{
		ID: uuid.New(), UserID: userID, ProviderSubscriptionID: "sub_2",
		Status: subscription.StatusPastDue, UpdatedAt: t0,
	}
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	current, err := s.GetCurrentForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "sub_2", current.ProviderSubscriptionID, "current status wins over recency")

	replay := &subscription.Subscription{ID: uuid.New(), UserID: userID, ProviderSubscriptionID: "sub_2", Status: subscription.StatusActive}
	require.NoError(t, s.Save(ctx, replay))
	got, err := s.GetByProviderID(ctx, "sub_2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID, "upsert keeps the original id")
	assert.Equal(t, subscription.StatusActive, got.Status)

	ended, err := s.ListCanceledBefore(ctx, t0)
	require.NoError(t, err)
	require.Len(t, ended, 1)
	assert.Equal(t, "sub_1", ended[0].ProviderSubscriptionID)

	ended, err = s.ListCanceledBefore(ctx, t0.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, ended)

	_, err = s.GetCurrentForUser(ctx, uuid.New())
	require.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
}
