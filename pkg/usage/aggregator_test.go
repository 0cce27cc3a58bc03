package usage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Prat011/free-cluely-sub000/pkg/billingperiod"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) SumMeetingMinutes(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockReader) CountMeetingsStarted(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockReader) SumAICost(ctx context.Context, userID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) InsertAIUsage(ctx context.Context, rec *usage.AIUsageRecord) error {
	return m.Called(ctx, rec).Error(0)
}

var period = billingperiod.Period{
	Start: time.Date(2024, time.February, 29, 10, 0, 0, 0, time.UTC),
	End:   time.Date(2024, time.March, 31, 10, 0, 0, 0, time.UTC),
}

func TestAggregator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()

	t.Run("passes half-open period bounds to the reader", func(t *testing.T) {
		t.Parallel()

		reader := &mockReader{}
		reader.On("SumMeetingMinutes", mock.Anything, userID, period.Start, period.End).Return(int64(85), nil)
		reader.On("CountMeetingsStarted", mock.Anything, userID, period.Start, period.End).Return(int64(4), nil)
		reader.On("SumAICost", mock.Anything, userID, period.Start, period.End).Return(decimal.RequireFromString("1.25"), nil)

		agg := usage.NewAggregator(reader)

		minutes, err := agg.MinutesUsed(ctx, userID, period)
		require.NoError(t, err)
		assert.Equal(t, int64(85), minutes)

		count, err := agg.MeetingCount(ctx, userID, period)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)

		cost, err := agg.AICostUsed(ctx, userID, period)
		require.NoError(t, err)
		assert.True(t, cost.Equal(decimal.RequireFromString("1.25")))

		reader.AssertExpectations(t)
	})

	t.Run("snapshot loads every figure", func(t *testing.T) {
		t.Parallel()

		reader := &mockReader{}
		reader.On("SumMeetingMinutes", mock.Anything, userID, period.Start, period.End).Return(int64(30), nil)
		reader.On("CountMeetingsStarted", mock.Anything, userID, period.Start, period.End).Return(int64(2), nil)
		reader.On("SumAICost", mock.Anything, userID, period.Start, period.End).Return(decimal.RequireFromString("0.10"), nil)

		snap, err := usage.NewAggregator(reader).Snapshot(ctx, userID, period)
		require.NoError(t, err)
		assert.Equal(t, period, snap.Period)
		assert.Equal(t, int64(30), snap.MinutesUsed)
		assert.Equal(t, int64(2), snap.MeetingCount)
		assert.True(t, snap.AICost.Equal(decimal.RequireFromString("0.10")))
	})

	t.Run("snapshot surfaces reader failures", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connection reset")
		reader := &mockReader{}
		reader.On("SumMeetingMinutes", mock.Anything, userID, mock.Anything, mock.Anything).Return(int64(0), boom)
		reader.On("CountMeetingsStarted", mock.Anything, userID, mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()
		reader.On("SumAICost", mock.Anything, userID, mock.Anything, mock.Anything).Return(decimal.Zero, nil).Maybe()

		_, err := usage.NewAggregator(reader).Snapshot(ctx, userID, period)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, usage.ErrFailedToAggregate)
	})

	t.Run("rolling window ends at now inclusive", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
		reader := &mockReader{}
		reader.On("CountMeetingsStarted", mock.Anything, userID, now.Add(-7*24*time.Hour), now.Add(time.Nanosecond)).Return(int64(1), nil)

		n, err := usage.NewAggregator(reader).MeetingsInWindow(ctx, userID, 7*24*time.Hour, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestRecordAIUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	prices := usage.PriceTable{
		"gpt-4o-mini":     {InputPerMillion: decimal.RequireFromString("0.15"), OutputPerMillion: decimal.RequireFromString("0.60")},
		usage.DefaultModel: {InputPerMillion: decimal.NewFromInt(3), OutputPerMillion: decimal.NewFromInt(15)},
	}

	t.Run("prices once and stores the frozen cost", func(t *testing.T) {
		t.Parallel()

		recorder := &mockRecorder{}
		recorder.On("InsertAIUsage", mock.Anything, mock.MatchedBy(func(rec *usage.AIUsageRecord) bool {
			return rec.UserID == userID && rec.CreatedAt.Equal(now) && rec.Model == "gpt-4o-mini"
		})).Return(nil)

		agg := usage.NewAggregator(&mockReader{},
			usage.WithRecorder(recorder),
			usage.WithPricing(prices),
			usage.WithClock(func() time.Time { return now }),
		)

		rec, err := agg.RecordAIUsage(ctx, userID, "gpt-4o-mini", 1_000_000, 500_000)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, rec.ID)
		assert.True(t, rec.CostUSD.Equal(decimal.RequireFromString("0.45")), rec.CostUSD.String())
		recorder.AssertExpectations(t)
	})

	t.Run("unknown models use the default price", func(t *testing.T) {
		t.Parallel()

		cost, err := prices.Cost("claude", 2000, 1000)
		require.NoError(t, err)
		assert.True(t, cost.Equal(decimal.RequireFromString("0.021")), cost.String())

		_, err = usage.PriceTable{}.Cost("claude", 1, 1)
		assert.ErrorIs(t, err, usage.ErrUnknownModel)
	})

	t.Run("rejects negative input", func(t *testing.T) {
		t.Parallel()

		_, err := prices.Cost("gpt-4o-mini", -1, 0)
		assert.ErrorIs(t, err, usage.ErrInvalidUsage)

		agg := usage.NewAggregator(&mockReader{}, usage.WithRecorder(&mockRecorder{}))
		_, err = agg.RecordAICost(ctx, userID, "x", decimal.NewFromInt(-1))
		assert.ErrorIs(t, err, usage.ErrInvalidUsage)
	})

	t.Run("requires a recorder", func(t *testing.T) {
		t.Parallel()

		_, err := usage.NewAggregator(&mockReader{}).RecordAICost(ctx, userID, "x", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, usage.ErrRecorderNotSet)
	})

	t.Run("wraps store failures", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		recorder := &mockRecorder{}
		recorder.On("InsertAIUsage", mock.Anything, mock.Anything).Return(boom)

		agg := usage.NewAggregator(&mockReader{}, usage.WithRecorder(recorder))
		_, err := agg.RecordAICost(ctx, userID, "x", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, usage.ErrFailedToRecordUsage)
	})

	t.Run("panics without reader", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { usage.NewAggregator(nil) })
	})
}
