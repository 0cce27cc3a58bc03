package plans

import (
	"github.com/shopspring/decimal"
)

// Unlimited marks an absent numeric cap.
const Unlimited int64 = -1

// Interval is the billing cadence of a plan.
type Interval string

const (
	IntervalNone    Interval = "none"
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// Valid reports whether i is a known interval.
func (i Interval) Valid() bool {
	switch i {
	case IntervalNone, IntervalMonthly, IntervalYearly:
		return true
	}
	return false
}

// Plan is an immutable product tier. Plans are identified by ID and ordered by Rank
// for upgrade suggestions.
type Plan struct {
	ID   string
	Name string
	Rank int

	// MonthlyRevenue is what one subscriber pays per month, in USD.
	MonthlyRevenue decimal.Decimal

	MaxMinutesPerMonth        int64 // Unlimited when absent
	MaxMinutesPerMeeting      int64
	MaxMeetingsPerRollingWeek int64 // Unlimited when absent

	// AIBudgetFactor is the fraction of MonthlyRevenue that may be spent on AI calls.
	AIBudgetFactor decimal.Decimal
	// AIAllowance is a fixed AI spend granted on top of the revenue share.
	AIAllowance decimal.Decimal

	Interval         Interval
	ProviderPriceIDs []string
}

// MaxAISpend is the AI spend ceiling for one billing period.
func (p Plan) MaxAISpend() decimal.Decimal {
	return p.MonthlyRevenue.Mul(p.AIBudgetFactor).Add(p.AIAllowance)
}

// HasMonthlyMinuteLimit reports whether monthly meeting minutes are capped.
func (p Plan) HasMonthlyMinuteLimit() bool {
	return p.MaxMinutesPerMonth != Unlimited
}

// HasWeeklyMeetingLimit reports whether meetings per rolling week are capped.
func (p Plan) HasWeeklyMeetingLimit() bool {
	return p.MaxMeetingsPerRollingWeek != Unlimited
}

// IsPaid reports whether the plan brings revenue.
func (p Plan) IsPaid() bool {
	return p.MonthlyRevenue.IsPositive()
}
