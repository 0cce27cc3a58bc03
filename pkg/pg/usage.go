package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

// SumMeetingMinutes implements usage.Reader.
func (s *Store) SumMeetingMinutes(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(duration_minutes), 0)::BIGINT
		FROM meetings
		WHERE user_id = $1 AND ended_at >= $2 AND ended_at < $3`,
		userID, from.UTC(), to.UTC()).Scan(&total)
	if err != nil {
		return 0, classify(err, nil)
	}
	return total, nil
}

// CountMeetingsStarted implements usage.Reader.
func (s *Store) CountMeetingsStarted(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM meetings
		WHERE user_id = $1 AND started_at >= $2 AND started_at < $3`,
		userID, from.UTC(), to.UTC()).Scan(&n)
	if err != nil {
		return 0, classify(err, nil)
	}
	return n, nil
}

// SumAICost implements usage.Reader. The sum travels as text so no precision is
// lost between NUMERIC and decimal.Decimal.
func (s *Store) SumAICost(ctx context.Context, userID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(cost_usd), 0)::TEXT
		FROM ai_usage_records
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`,
		userID, from.UTC(), to.UTC()).Scan(&raw)
	if err != nil {
		return decimal.Zero, classify(err, nil)
	}
	return decimal.NewFromString(raw)
}

// InsertAIUsage implements usage.Recorder.
func (s *Store) InsertAIUsage(ctx context.Context, rec *usage.AIUsageRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ai_usage_records (id, user_id, created_at, cost_usd, model, input_tokens, output_tokens)
		VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7)`,
		rec.ID, rec.UserID, rec.CreatedAt.UTC(), rec.CostUSD.String(), rec.Model,
		rec.InputTokens, rec.OutputTokens)
	return classify(err, account.ErrUserNotFound)
}
