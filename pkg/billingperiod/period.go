// Package billingperiod resolves the billing window that contains a given
// instant. Periods are half-open, [Start, End), in UTC.
package billingperiod

import (
	"time"

	"github.com/Prat011/free-cluely-sub000/pkg/plans"
)

// Period is a half-open time window [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// LastInstant is the final millisecond inside the period, for display.
func (p Period) LastInstant() time.Time {
	return p.End.Add(-time.Millisecond)
}

// Current returns the period containing now. Without an anchor, or for plans billed
// with IntervalNone, the calendar month of now is used. With an anchor, periods are
// whole intervals stepped from the anchor, each computed from the anchor itself so
// day-of-month never drifts; days missing from shorter months clamp to the month's
// last day.
func Current(anchor *time.Time, interval plans.Interval, now time.Time) Period {
	now = now.UTC()
	step := monthsPerInterval(interval)
	if anchor == nil || step == 0 {
		return CalendarMonth(now)
	}

	a := anchor.UTC()
	k := monthsBetween(a, now) / step
	for shift(a, k*step).After(now) {
		k--
	}
	for !shift(a, (k+1)*step).After(now) {
		k++
	}

	return Period{Start: shift(a, k*step), End: shift(a, (k+1)*step)}
}

// CalendarMonth returns the UTC calendar month containing now.
func CalendarMonth(now time.Time) Period {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

func monthsPerInterval(interval plans.Interval) int {
	switch interval {
	case plans.IntervalMonthly:
		return 1
	case plans.IntervalYearly:
		return 12
	default:
		return 0
	}
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// shift moves anchor by n calendar months, clamping the day to the target month.
func shift(anchor time.Time, n int) time.Time {
	total := int(anchor.Month()) - 1 + n
	year := anchor.Year() + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)

	day := min(anchor.Day(), daysInMonth(year, month))
	return time.Date(year, month, day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), time.UTC)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func daysInMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 0, -1).Day()
}
