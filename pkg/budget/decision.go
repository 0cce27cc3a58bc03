package budget

import (
	"math"
	"time"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
)

// FreeTrialWindow is how long a free user waits between trial meetings.
const FreeTrialWindow = 7 * 24 * time.Hour

// Code identifies why a decision was made.
type Code string

const (
	CodeAllowed              Code = "allowed"
	CodeMeetingInProgress    Code = "meeting_in_progress"
	CodeFreeTrialCooldown    Code = "free_trial_cooldown"
	CodeMeetingTooLong       Code = "meeting_too_long"
	CodeWeeklyMeetingLimit   Code = "weekly_meeting_limit"
	CodeMonthlyQuotaExceeded Code = "monthly_quota_exceeded"
	CodeAIBudgetExhausted    Code = "ai_budget_exhausted"
)

// Decision is the outcome of a policy check. A denial is a normal result, not
// an error.
type Decision struct {
	Allowed     bool     `json:"allowed"`
	Code        Code     `json:"code"`
	Reason      string   `json:"reason,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Allow returns a positive decision.
func Allow() Decision {
	return Decision{Allowed: true, Code: CodeAllowed}
}

func deny(code Code, reason string, suggestions ...string) Decision {
	return Decision{Code: code, Reason: reason, Suggestions: suggestions}
}

// FreeTrialDecision decides whether a user may start a free trial meeting at now.
// Users on a paid plan are always allowed. Free users must wait FreeTrialWindow
// after their last trial; the denial quotes the whole days left, rounded up.
func FreeTrialDecision(u *account.User, onFreePlan bool, now time.Time) Decision {
	if !onFreePlan || u == nil || u.LastFreeTrialStartedAt == nil {
		return Allow()
	}

	elapsed := now.Sub(*u.LastFreeTrialStartedAt)
	if elapsed >= FreeTrialWindow {
		return Allow()
	}

	days := DaysRemaining(FreeTrialWindow - elapsed)
	return deny(CodeFreeTrialCooldown,
		printer.Sprintf("Your free trial is used for this week. You can start another in %d %s.", days, plural(days, "day", "days")),
		"Upgrade to a paid plan to hold meetings any time.",
	)
}

// DaysRemaining converts a duration to whole days, rounding any partial day up.
func DaysRemaining(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Hours() / 24))
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
