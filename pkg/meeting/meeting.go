package meeting

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// EndReason records why a meeting was closed.
type EndReason string

const (
	EndReasonUser       EndReason = "user"
	EndReasonCapReached EndReason = "cap_reached"
)

// Warning is a pre-cutoff signal, fired at most once per meeting.
type Warning string

const (
	WarningFiveMinutes Warning = "five_minutes"
	WarningOneMinute   Warning = "one_minute"
)

// Warnings lists the signals in the order they must fire.
var Warnings = []Warning{WarningFiveMinutes, WarningOneMinute}

// Threshold is the remaining time at which the warning becomes due.
func (w Warning) Threshold() time.Duration {
	switch w {
	case WarningFiveMinutes:
		return 5 * time.Minute
	case WarningOneMinute:
		return time.Minute
	default:
		return 0
	}
}

// Meeting is one recorded session. MaxMinutes is frozen from the plan at start so a
// later plan change does not move the cutoff of a running meeting.
type Meeting struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	PlanID          string
	MaxMinutes      int64
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationMinutes *int64
	EndReason       EndReason
	WarnedFiveAt    *time.Time
	WarnedOneAt     *time.Time
}

// State derives the lifecycle state from the record.
func (m *Meeting) State() State {
	if m == nil {
		return StateUnstarted
	}
	if m.EndedAt != nil {
		return StateClosed
	}
	return StateOpen
}

// IsOpen reports whether the meeting has not been closed yet.
func (m *Meeting) IsOpen() bool {
	return m.State() == StateOpen
}

// Deadline is the instant the per-meeting cap is reached.
func (m *Meeting) Deadline() time.Time {
	return m.StartedAt.Add(time.Duration(m.MaxMinutes) * time.Minute)
}

// WarningSent reports whether w was already fired.
func (m *Meeting) WarningSent(w Warning) bool {
	switch w {
	case WarningFiveMinutes:
		return m.WarnedFiveAt != nil
	case WarningOneMinute:
		return m.WarnedOneAt != nil
	default:
		return false
	}
}

// IsExpired reports whether the meeting has run for its full cap at now.
func IsExpired(m *Meeting, now time.Time) bool {
	return !now.Before(m.Deadline())
}

// DurationMinutes rounds the elapsed time between start and end to whole minutes.
func DurationMinutes(start, end time.Time) int64 {
	elapsed := end.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	return int64(math.Round(float64(elapsed.Milliseconds()) / 60000))
}

// Store persists meetings. Implementations must make CreateOpenMeeting atomic with
// respect to the one-open-meeting-per-user rule and return store.ErrConflict when it
// is violated. CloseMeeting and MarkWarningSent are compare-and-set operations:
// the boolean result is false when the record was already closed or warned.
type Store interface {
	CreateOpenMeeting(ctx context.Context, m *Meeting) error
	GetMeeting(ctx context.Context, id uuid.UUID) (*Meeting, error)
	GetOpenMeeting(ctx context.Context, userID uuid.UUID) (*Meeting, error)
	CloseMeeting(ctx context.Context, id uuid.UUID, endedAt time.Time, durationMinutes int64, reason EndReason) (*Meeting, bool, error)
	ListOpenMeetings(ctx context.Context) ([]Meeting, error)
	MarkWarningSent(ctx context.Context, id uuid.UUID, w Warning, at time.Time) (bool, error)
}
