package plans

import "github.com/shopspring/decimal"

// DefaultPlans is the built-in catalog used when no plan file is configured.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:                        DefaultFreePlanID,
			Name:                      "Free",
			Rank:                      0,
			MonthlyRevenue:            decimal.Zero,
			MaxMinutesPerMonth:        Unlimited,
			MaxMinutesPerMeeting:      15,
			MaxMeetingsPerRollingWeek: 1,
			AIBudgetFactor:            decimal.Zero,
			AIAllowance:               decimal.RequireFromString("0.25"),
			Interval:                  IntervalNone,
		},
		{
			ID:                        "starter",
			Name:                      "Starter",
			Rank:                      1,
			MonthlyRevenue:            decimal.RequireFromString("9.99"),
			MaxMinutesPerMonth:        300,
			MaxMinutesPerMeeting:      60,
			MaxMeetingsPerRollingWeek: Unlimited,
			AIBudgetFactor:            decimal.RequireFromString("0.30"),
			AIAllowance:               decimal.Zero,
			Interval:                  IntervalMonthly,
		},
		{
			ID:                        "pro",
			Name:                      "Pro",
			Rank:                      2,
			MonthlyRevenue:            decimal.RequireFromString("24.99"),
			MaxMinutesPerMonth:        1200,
			MaxMinutesPerMeeting:      120,
			MaxMeetingsPerRollingWeek: Unlimited,
			AIBudgetFactor:            decimal.RequireFromString("0.30"),
			AIAllowance:               decimal.Zero,
			Interval:                  IntervalMonthly,
		},
		{
			ID:                        "unlimited",
			Name:                      "Unlimited",
			Rank:                      3,
			MonthlyRevenue:            decimal.RequireFromString("49.99"),
			MaxMinutesPerMonth:        Unlimited,
			MaxMinutesPerMeeting:      240,
			MaxMeetingsPerRollingWeek: Unlimited,
			AIBudgetFactor:            decimal.RequireFromString("0.25"),
			AIAllowance:               decimal.Zero,
			Interval:                  IntervalMonthly,
		},
	}
}
