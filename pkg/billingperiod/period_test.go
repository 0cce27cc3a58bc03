package billingperiod_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Prat011/free-cluely-sub000/pkg/billingperiod"
	"github.com/Prat011/free-cluely-sub000/pkg/plans"
)

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestCurrent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		anchor   *time.Time
		interval plans.Interval
		now      time.Time
		start    time.Time
		end      time.Time
	}{
		{
			name:     "month-end anchor clamps to leap february",
			anchor:   ptr(at(2024, time.January, 31, 10)),
			interval: plans.IntervalMonthly,
			now:      at(2024, time.March, 5, 0),
			start:    at(2024, time.February, 29, 10),
			end:      at(2024, time.March, 31, 10),
		},
		{
			name:     "mid february with jan 31 anchor stays in the anchor period",
			anchor:   ptr(at(2024, time.January, 31, 0)),
			interval: plans.IntervalMonthly,
			now:      at(2024, time.February, 20, 0),
			start:    at(2024, time.January, 31, 0),
			end:      at(2024, time.February, 29, 0),
		},
		{
			name:     "mid february with jan 31 anchor in a non-leap year",
			anchor:   ptr(at(2023, time.January, 31, 0)),
			interval: plans.IntervalMonthly,
			now:      at(2023, time.February, 20, 0),
			start:    at(2023, time.January, 31, 0),
			end:      at(2023, time.February, 28, 0),
		},
		{
			name:     "month-end anchor clamps to non-leap february",
			anchor:   ptr(at(2023, time.January, 31, 0)),
			interval: plans.IntervalMonthly,
			now:      at(2023, time.February, 28, 12),
			start:    at(2023, time.February, 28, 0),
			end:      at(2023, time.March, 31, 0),
		},
		{
			name:     "day 31 clamps to 30 in april",
			anchor:   ptr(at(2024, time.March, 31, 0)),
			interval: plans.IntervalMonthly,
			now:      at(2024, time.May, 1, 0),
			start:    at(2024, time.April, 30, 0),
			end:      at(2024, time.May, 31, 0),
		},
		{
			name:     "now equal to anchor starts the first period",
			anchor:   ptr(at(2024, time.June, 15, 8)),
			interval: plans.IntervalMonthly,
			now:      at(2024, time.June, 15, 8),
			start:    at(2024, time.June, 15, 8),
			end:      at(2024, time.July, 15, 8),
		},
		{
			name:     "period end belongs to the next period",
			anchor:   ptr(at(2024, time.June, 15, 8)),
			interval: plans.IntervalMonthly,
			now:      at(2024, time.July, 15, 8),
			start:    at(2024, time.July, 15, 8),
			end:      at(2024, time.August, 15, 8),
		},
		{
			name:     "just before anchor day stays in previous period",
			anchor:   ptr(at(2024, time.June, 15, 8)),
			interval: plans.IntervalMonthly,
			now:      at(2024, time.September, 15, 7),
			start:    at(2024, time.August, 15, 8),
			end:      at(2024, time.September, 15, 8),
		},
		{
			name:     "crosses year boundary",
			anchor:   ptr(at(2023, time.November, 20, 0)),
			interval: plans.IntervalMonthly,
			now:      at(2024, time.January, 2, 0),
			start:    at(2023, time.December, 20, 0),
			end:      at(2024, time.January, 20, 0),
		},
		{
			name:     "anchor in the future steps backwards",
			anchor:   ptr(at(2024, time.May, 10, 0)),
			interval: plans.IntervalMonthly,
			now:      at(2024, time.March, 20, 0),
			start:    at(2024, time.March, 10, 0),
			end:      at(2024, time.April, 10, 0),
		},
		{
			name:     "yearly leap-day anchor",
			anchor:   ptr(at(2024, time.February, 29, 0)),
			interval: plans.IntervalYearly,
			now:      at(2025, time.June, 1, 0),
			start:    at(2025, time.February, 28, 0),
			end:      at(2026, time.February, 28, 0),
		},
		{
			name:     "yearly returns to leap day",
			anchor:   ptr(at(2024, time.February, 29, 0)),
			interval: plans.IntervalYearly,
			now:      at(2028, time.March, 1, 0),
			start:    at(2028, time.February, 29, 0),
			end:      at(2029, time.February, 28, 0),
		},
		{
			name:     "no anchor falls back to calendar month",
			interval: plans.IntervalMonthly,
			now:      at(2024, time.December, 31, 23),
			start:    at(2024, time.December, 1, 0),
			end:      at(2025, time.January, 1, 0),
		},
		{
			name:     "interval none falls back to calendar month",
			anchor:   ptr(at(2024, time.January, 31, 10)),
			interval: plans.IntervalNone,
			now:      at(2024, time.March, 5, 0),
			start:    at(2024, time.March, 1, 0),
			end:      at(2024, time.April, 1, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := billingperiod.Current(tt.anchor, tt.interval, tt.now)
			assert.Equal(t, tt.start, p.Start)
			assert.Equal(t, tt.end, p.End)
			assert.True(t, p.Contains(tt.now))
			assert.False(t, p.Contains(p.End))
		})
	}
}

func TestCurrentIsPure(t *testing.T) {
	t.Parallel()

	anchor := at(2024, time.January, 31, 10)
	now := at(2024, time.March, 5, 0)
	first := billingperiod.Current(&anchor, plans.IntervalMonthly, now)
	second := billingperiod.Current(&anchor, plans.IntervalMonthly, now)
	assert.Equal(t, first, second)
	assert.Equal(t, at(2024, time.January, 31, 10), anchor)
}

func TestCurrentNormalizesToUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2024, time.March, 1, 1, 0, 0, 0, loc)

	p := billingperiod.Current(nil, plans.IntervalMonthly, now)
	assert.Equal(t, at(2024, time.February, 1, 0), p.Start)
	assert.Equal(t, at(2024, time.March, 1, 0), p.End)
}

func TestLastInstant(t *testing.T) {
	t.Parallel()

	p := billingperiod.CalendarMonth(at(2024, time.February, 10, 0))
	assert.Equal(t, time.Date(2024, time.February, 29, 23, 59, 59, int(999*time.Millisecond), time.UTC), p.LastInstant())
	assert.True(t, p.Contains(p.LastInstant()))
}
