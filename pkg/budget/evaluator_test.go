package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/budget"
	"github.com/Prat011/free-cluely-sub000/pkg/logger"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
	"github.com/Prat011/free-cluely-sub000/pkg/memstore"
	"github.com/Prat011/free-cluely-sub000/pkg/plans"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

var now = time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *plans.Catalog {
	t.Helper()
	c, err := plans.NewCatalog([]plans.Plan{
		{
			ID:                        "free",
			Name:                      "Free",
			MaxMinutesPerMonth:        plans.Unlimited,
			MaxMinutesPerMeeting:      15,
			MaxMeetingsPerRollingWeek: 1,
			AIAllowance:               decimal.RequireFromString("0.25"),
			Interval:                  plans.IntervalNone,
		},
		{
			ID:                        "basic",
			Name:                      "Basic",
			Rank:                      1,
			MonthlyRevenue:            decimal.NewFromInt(9),
			AIBudgetFactor:            decimal.RequireFromString("0.5"),
			MaxMinutesPerMonth:        100,
			MaxMinutesPerMeeting:      60,
			MaxMeetingsPerRollingWeek: plans.Unlimited,
			Interval:                  plans.IntervalMonthly,
		},
		{
			ID:                        "max",
			Name:                      "Max",
			Rank:                      2,
			MonthlyRevenue:            decimal.NewFromInt(30),
			AIBudgetFactor:            decimal.RequireFromString("0.5"),
			MaxMinutesPerMonth:        plans.Unlimited,
			MaxMinutesPerMeeting:      240,
			MaxMeetingsPerRollingWeek: plans.Unlimited,
			Interval:                  plans.IntervalMonthly,
		},
	})
	require.NoError(t, err)
	return c
}

type fixture struct {
	store     *memstore.Store
	evaluator *budget.Evaluator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	clock := func() time.Time { return now }
	agg := usage.NewAggregator(s,
		usage.WithRecorder(s),
		usage.WithClock(clock),
		usage.WithLogger(logger.Discard()),
	)
	e := budget.NewEvaluator(s, s, s, testCatalog(t), agg,
		budget.WithClock(clock),
		budget.WithLogger(logger.Discard()),
	)
	return &fixture{store: s, evaluator: e}
}

func (f *fixture) user(plan string, lastTrial *time.Time) uuid.UUID {
	id := uuid.New()
	f.store.PutUser(account.User{ID: id, CurrentPlan: plan, LastFreeTrialStartedAt: lastTrial})
	return id
}

func (f *fixture) closedMeeting(t *testing.T, userID uuid.UUID, startedAt time.Time, minutes int64) {
	t.Helper()
	ctx := context.Background()
	m := &meeting.Meeting{ID: uuid.New(), UserID: userID, MaxMinutes: 240, StartedAt: startedAt}
	require.NoError(t, f.store.CreateOpenMeeting(ctx, m))
	_, _, err := f.store.CloseMeeting(ctx, m.ID, startedAt.Add(time.Duration(minutes)*time.Minute), minutes, meeting.EndReasonUser)
	require.NoError(t, err)
}

func (f *fixture) aiCost(t *testing.T, userID uuid.UUID, at time.Time, cost string) {
	t.Helper()
	require.NoError(t, f.store.InsertAIUsage(context.Background(), &usage.AIUsageRecord{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: at,
		CostUSD:   decimal.RequireFromString(cost),
	}))
}

func ptr[T any](v T) *T { return &v }

func TestFreeTrialDecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		lastTrial  *time.Time
		onFree     bool
		allowed    bool
		wantReason string
	}{
		{name: "paid plans are always allowed", lastTrial: ptr(now.Add(-time.Hour)), onFree: false, allowed: true},
		{name: "never trialed", onFree: true, allowed: true},
		{name: "three days ago leaves exactly four days", lastTrial: ptr(now.Add(-3 * 24 * time.Hour)), onFree: true, wantReason: "4 days"},
		{name: "partial day rounds up", lastTrial: ptr(now.Add(-3*24*time.Hour - time.Hour)), onFree: true, wantReason: "4 days"},
		{name: "last hour is one day", lastTrial: ptr(now.Add(-7*24*time.Hour + time.Hour)), onFree: true, wantReason: "1 day."},
		{name: "exactly seven days ago", lastTrial: ptr(now.Add(-7 * 24 * time.Hour)), onFree: true, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := budget.FreeTrialDecision(&account.User{LastFreeTrialStartedAt: tt.lastTrial}, tt.onFree, now)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.Equal(t, budget.CodeFreeTrialCooldown, d.Code)
				assert.Contains(t, d.Reason, tt.wantReason)
			}
		})
	}
}

func TestCanStartFreeTrial(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	d, err := f.evaluator.CanStartFreeTrial(ctx, f.user("free", ptr(now.Add(-3*24*time.Hour))))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "4 days")

	d, err = f.evaluator.CanStartFreeTrial(ctx, f.user("basic", ptr(now.Add(-time.Hour))))
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, err = f.evaluator.CanStartFreeTrial(ctx, uuid.New())
	require.ErrorIs(t, err, account.ErrUserNotFound)
}

func TestCanStartMeeting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("open meeting is reported before any quota", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := f.user("free", ptr(now.Add(-time.Hour)))
		require.NoError(t, f.store.CreateOpenMeeting(ctx, &meeting.Meeting{
			ID: uuid.New(), UserID: userID, MaxMinutes: 15, StartedAt: now.Add(-time.Minute),
		}))

		d, err := f.evaluator.CanStartMeeting(ctx, userID, 500)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, budget.CodeMeetingInProgress, d.Code)
	})

	t.Run("free plan trial cooldown", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		d, err := f.evaluator.CanStartMeeting(ctx, f.user("free", ptr(now.Add(-2*24*time.Hour))), 10)
		require.NoError(t, err)
		assert.Equal(t, budget.CodeFreeTrialCooldown, d.Code)
		assert.Contains(t, d.Reason, "5 days")
	})

	t.Run("free plan per-meeting cap", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := f.user("free", nil)

		d, err := f.evaluator.CanStartMeeting(ctx, userID, 16)
		require.NoError(t, err)
		assert.Equal(t, budget.CodeMeetingTooLong, d.Code)
		assert.Contains(t, d.Reason, "15 minutes")
		assert.Equal(t, []string{"Upgrade to Basic for 100 minutes per month."}, d.Suggestions)

		d, err = f.evaluator.CanStartMeeting(ctx, userID, 15)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("free plan rolling week meeting cap", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := f.user("free", nil)
		f.closedMeeting(t, userID, now.Add(-6*24*time.Hour), 10)

		d, err := f.evaluator.CanStartMeeting(ctx, userID, 10)
		require.NoError(t, err)
		assert.Equal(t, budget.CodeWeeklyMeetingLimit, d.Code)
		assert.Contains(t, d.Reason, "1 of 1")

		other := f.user("free", nil)
		f.closedMeeting(t, other, now.Add(-8*24*time.Hour), 10)
		d, err = f.evaluator.CanStartMeeting(ctx, other, 10)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "meetings older than a week do not count")
	})

	t.Run("monthly quota quotes used and limit", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := f.user("basic", nil)
		f.closedMeeting(t, userID, time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC), 50)
		f.closedMeeting(t, userID, time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC), 35)
		f.closedMeeting(t, userID, time.Date(2024, time.February, 20, 9, 0, 0, 0, time.UTC), 60)

		d, err := f.evaluator.CanStartMeeting(ctx, userID, 20)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, budget.CodeMonthlyQuotaExceeded, d.Code)
		assert.Contains(t, d.Reason, "85 of 100")
		assert.Equal(t, []string{"Upgrade to Max for unlimited monthly minutes."}, d.Suggestions)

		d, err = f.evaluator.CanStartMeeting(ctx, userID, 15)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("monthly quota follows the subscription anchor", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := f.user("basic", nil)
		require.NoError(t, f.store.Save(ctx, &subscription.Subscription{
			ID:                     uuid.New(),
			UserID:                 userID,
			ProviderSubscriptionID: "sub_anchor",
			PlanID:                 "basic",
			Status:                 subscription.StatusActive,
			BillingInterval:        plans.IntervalMonthly,
			RenewAt:                ptr(time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)),
		}))
		// before the period that started on Feb 29
		f.closedMeeting(t, userID, time.Date(2024, time.February, 28, 9, 0, 0, 0, time.UTC), 90)
		f.closedMeeting(t, userID, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC), 30)

		d, err := f.evaluator.CanStartMeeting(ctx, userID, 60)
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		d, err = f.evaluator.CanStartMeeting(ctx, userID, 71)
		require.NoError(t, err)
		assert.Contains(t, d.Reason, "30 of 100")
	})

	t.Run("top plan gets no upgrade suggestion", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		d, err := f.evaluator.CanStartMeeting(ctx, f.user("max", nil), 10_000)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "unlimited monthly minutes")
	})

	t.Run("unknown plan on user is an error", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.evaluator.CanStartMeeting(ctx, f.user("legacy", nil), 10)
		require.ErrorIs(t, err, plans.ErrUnknownPlan)
		assert.ErrorIs(t, err, budget.ErrFailedToEvaluate)
	})

	t.Run("negative estimate is rejected", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.evaluator.CanStartMeeting(ctx, f.user("basic", nil), -1)
		require.ErrorIs(t, err, budget.ErrInvalidEstimate)
	})
}

func TestCanAffordAIRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("budget is revenue times factor", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := f.user("basic", nil)
		f.aiCost(t, userID, now.Add(-time.Hour), "3.5")
		f.aiCost(t, userID, now.Add(-2*time.Hour), "0.5")
		f.aiCost(t, userID, time.Date(2024, time.February, 28, 0, 0, 0, 0, time.UTC), "10")

		d, err := f.evaluator.CanAffordAIRequest(ctx, userID, decimal.RequireFromString("0.6"))
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, budget.CodeAIBudgetExhausted, d.Code)
		assert.Contains(t, d.Reason, "April 1, 2024")

		d, err = f.evaluator.CanAffordAIRequest(ctx, userID, decimal.RequireFromString("0.4"))
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		d, err = f.evaluator.CanAffordAIRequest(ctx, userID, decimal.RequireFromString("0.5"))
		require.NoError(t, err)
		assert.True(t, d.Allowed, "spending up to the budget exactly is allowed")
	})

	t.Run("free plan spends only its allowance", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := f.user("free", nil)

		d, err := f.evaluator.CanAffordAIRequest(ctx, userID, decimal.RequireFromString("0.25"))
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		f.aiCost(t, userID, now.Add(-time.Minute), "0.20")
		d, err = f.evaluator.CanAffordAIRequest(ctx, userID, decimal.RequireFromString("0.06"))
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})
}

func TestAIDecision(t *testing.T) {
	t.Parallel()

	plan := plans.Plan{
		MonthlyRevenue: decimal.NewFromInt(9),
		AIBudgetFactor: decimal.RequireFromString("0.5"),
	}
	used := decimal.RequireFromString("4.0")

	assert.False(t, budget.AIDecision(plan, used, decimal.RequireFromString("0.6"), billingperiodFor(now)).Allowed)
	assert.True(t, budget.AIDecision(plan, used, decimal.RequireFromString("0.4"), billingperiodFor(now)).Allowed)
}
