package budget

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageStats is the usage summary of one user for the current billing period.
type UsageStats struct {
	PlanID string `json:"plan_id"`
	// PeriodStart is inclusive; PeriodEnd is the last instant of the period.
	PeriodStart        time.Time       `json:"period_start"`
	PeriodEnd          time.Time       `json:"period_end"`
	MinutesUsed        int64           `json:"minutes_used"`
	MinutesLimit       int64           `json:"minutes_limit"` // plans.Unlimited when uncapped
	MeetingsThisPeriod int64           `json:"meetings_this_period"`
	AICostThisPeriod   decimal.Decimal `json:"ai_cost_this_period"`
	AIBudget           decimal.Decimal `json:"ai_budget"`
	RemainingBudget    decimal.Decimal `json:"remaining_budget"`
	BudgetUsagePercent float64         `json:"budget_usage_percent"`
}

// CompleteUsageStats loads every usage figure for the user's current period.
func (e *Evaluator) CompleteUsageStats(ctx context.Context, userID uuid.UUID) (UsageStats, error) {
	now := e.now().UTC()

	_, plan, err := e.UserPlan(ctx, userID)
	if err != nil {
		return UsageStats{}, errors.Join(ErrFailedToLoadStats, err)
	}
	period, err := e.Period(ctx, userID, now)
	if err != nil {
		return UsageStats{}, errors.Join(ErrFailedToLoadStats, err)
	}
	snap, err := e.usage.Snapshot(ctx, userID, period)
	if err != nil {
		return UsageStats{}, errors.Join(ErrFailedToLoadStats, err)
	}

	budget := plan.MaxAISpend()
	remaining := budget.Sub(snap.AICost)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return UsageStats{
		PlanID:             plan.ID,
		PeriodStart:        period.Start,
		PeriodEnd:          period.LastInstant(),
		MinutesUsed:        snap.MinutesUsed,
		MinutesLimit:       plan.MaxMinutesPerMonth,
		MeetingsThisPeriod: snap.MeetingCount,
		AICostThisPeriod:   snap.AICost,
		AIBudget:           budget,
		RemainingBudget:    remaining,
		BudgetUsagePercent: UsagePercent(snap.AICost, budget),
	}, nil
}

// UsagePercent is used/budget as a percentage rounded to two decimals. Any spend
// against a zero budget reports 100.
func UsagePercent(used, budget decimal.Decimal) float64 {
	if !budget.IsPositive() {
		if used.IsPositive() {
			return 100
		}
		return 0
	}
	return used.Div(budget).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}
