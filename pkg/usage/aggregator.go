package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Prat011/free-cluely-sub000/pkg/billingperiod"
	"github.com/Prat011/free-cluely-sub000/pkg/logger"
)

// Snapshot holds the three usage figures of one billing period.
type Snapshot struct {
	Period       billingperiod.Period
	MinutesUsed  int64
	MeetingCount int64
	AICost       decimal.Decimal
}

// Aggregator computes usage within billing periods. It never caches: every call
// re-queries the Reader.
type Aggregator struct {
	reader   Reader
	recorder Recorder
	prices   PriceTable
	now      func() time.Time
	log      *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRecorder enables AI usage recording.
func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

// WithPricing sets the price table used by RecordAIUsage.
func WithPricing(t PriceTable) Option {
	return func(a *Aggregator) { a.prices = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAggregator creates an Aggregator. Panics if reader is nil.
func NewAggregator(reader Reader, opts ...Option) *Aggregator {
	if reader == nil {
		panic("usage: Reader is required")
	}
	a := &Aggregator{
		reader: reader,
		prices: PriceTable{},
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MinutesUsed sums the durations of meetings that ended inside the period.
// Meetings still open contribute nothing.
func (a *Aggregator) MinutesUsed(ctx context.Context, userID uuid.UUID, p billingperiod.Period) (int64, error) {
	n, err := a.reader.SumMeetingMinutes(ctx, userID, p.Start, p.End)
	if err != nil {
		return 0, errors.Join(ErrFailedToAggregate, err)
	}
	return n, nil
}

// AICostUsed sums AI cost recorded inside the period.
func (a *Aggregator) AICostUsed(ctx context.Context, userID uuid.UUID, p billingperiod.Period) (decimal.Decimal, error) {
	cost, err := a.reader.SumAICost(ctx, userID, p.Start, p.End)
	if err != nil {
		return decimal.Zero, errors.Join(ErrFailedToAggregate, err)
	}
	return cost, nil
}

// MeetingCount counts meetings started inside the period.
func (a *Aggregator) MeetingCount(ctx context.Context, userID uuid.UUID, p billingperiod.Period) (int64, error) {
	n, err := a.reader.CountMeetingsStarted(ctx, userID, p.Start, p.End)
	if err != nil {
		return 0, errors.Join(ErrFailedToAggregate, err)
	}
	return n, nil
}

// MeetingsInWindow counts meetings started during the window ending at now.
func (a *Aggregator) MeetingsInWindow(ctx context.Context, userID uuid.UUID, window time.Duration, now time.Time) (int64, error) {
	return a.MeetingCount(ctx, userID, billingperiod.Period{Start: now.Add(-window), End: now.Add(time.Nanosecond)})
}

// Snapshot loads all three figures for the period concurrently.
func (a *Aggregator) Snapshot(ctx context.Context, userID uuid.UUID, p billingperiod.Period) (Snapshot, error) {
	s := Snapshot{Period: p}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		s.MinutesUsed, err = a.MinutesUsed(gctx, userID, p)
		return err
	})
	g.Go(func() error {
		var err error
		s.MeetingCount, err = a.MeetingCount(gctx, userID, p)
		return err
	})
	g.Go(func() error {
		var err error
		s.AICost, err = a.AICostUsed(gctx, userID, p)
		return err
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// RecordAIUsage prices a completed AI call with the configured table and stores it.
func (a *Aggregator) RecordAIUsage(ctx context.Context, userID uuid.UUID, model string, inputTokens, outputTokens int64) (*AIUsageRecord, error) {
	cost, err := a.prices.Cost(model, inputTokens, outputTokens)
	if err != nil {
		return nil, err
	}
	rec := &AIUsageRecord{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
	}
	return a.record(ctx, userID, rec)
}

// RecordAICost stores an AI call whose cost is already known.
func (a *Aggregator) RecordAICost(ctx context.Context, userID uuid.UUID, model string, cost decimal.Decimal) (*AIUsageRecord, error) {
	if cost.IsNegative() {
		return nil, errors.Join(ErrInvalidUsage, errors.New("negative cost"))
	}
	return a.record(ctx, userID, &AIUsageRecord{Model: model, CostUSD: cost})
}

func (a *Aggregator) record(ctx context.Context, userID uuid.UUID, rec *AIUsageRecord) (*AIUsageRecord, error) {
	if a.recorder == nil {
		return nil, ErrRecorderNotSet
	}

	rec.ID = uuid.New()
	rec.UserID = userID
	rec.CreatedAt = a.now().UTC()

	if err := a.recorder.InsertAIUsage(ctx, rec); err != nil {
		return nil, errors.Join(ErrFailedToRecordUsage, err)
	}

	a.log.DebugContext(ctx, "ai usage recorded",
		logger.UserID(userID),
		slog.String("model", rec.Model),
		slog.String("cost_usd", rec.CostUSD.String()),
	)
	return rec, nil
}
