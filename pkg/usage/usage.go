package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AIUsageRecord is one billed AI call. CostUSD is computed when the record is
// created and never recomputed.
type AIUsageRecord struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	CreatedAt    time.Time
	CostUSD      decimal.Decimal
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Reader answers the aggregate queries behind every usage figure. Ranges are
// half-open: from inclusive, to exclusive.
type Reader interface {
	// SumMeetingMinutes sums frozen durations of meetings that ended in range.
	SumMeetingMinutes(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error)
	// CountMeetingsStarted counts meetings, open or closed, that started in range.
	CountMeetingsStarted(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error)
	// SumAICost sums the cost of AI usage records created in range.
	SumAICost(ctx context.Context, userID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}

// Recorder appends AI usage records.
type Recorder interface {
	InsertAIUsage(ctx context.Context, rec *AIUsageRecord) error
}
