package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
)

const meetingColumns = `id, user_id, plan_id, max_minutes, started_at, ended_at,
	duration_minutes, end_reason, warned_five_at, warned_one_at`

func scanMeeting(row pgx.Row) (*meeting.Meeting, error) {
	var (
		m      meeting.Meeting
		reason string
	)
	err := row.Scan(&m.ID, &m.UserID, &m.PlanID, &m.MaxMinutes, &m.StartedAt, &m.EndedAt,
		&m.DurationMinutes, &reason, &m.WarnedFiveAt, &m.WarnedOneAt)
	if err != nil {
		return nil, err
	}
	m.EndReason = meeting.EndReason(reason)
	return &m, nil
}

// CreateOpenMeeting implements meeting.Store. The partial unique index on
// (user_id) WHERE ended_at IS NULL rejects a second open meeting.
func (s *Store) CreateOpenMeeting(ctx context.Context, m *meeting.Meeting) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meetings (id, user_id, plan_id, max_minutes, started_at, ended_at,
			duration_minutes, end_reason, warned_five_at, warned_one_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.UserID, m.PlanID, m.MaxMinutes, m.StartedAt.UTC(), m.EndedAt,
		m.DurationMinutes, string(m.EndReason), m.WarnedFiveAt, m.WarnedOneAt)
	return classify(err, account.ErrUserNotFound)
}

// GetMeeting implements meeting.Store.
func (s *Store) GetMeeting(ctx context.Context, id uuid.UUID) (*meeting.Meeting, error) {
	m, err := scanMeeting(s.pool.QueryRow(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, meeting.ErrMeetingNotFound)
	}
	return m, nil
}

// GetOpenMeeting implements meeting.Store.
func (s *Store) GetOpenMeeting(ctx context.Context, userID uuid.UUID) (*meeting.Meeting, error) {
	m, err := scanMeeting(s.pool.QueryRow(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE user_id = $1 AND ended_at IS NULL`, userID))
	if err != nil {
		return nil, classify(err, meeting.ErrMeetingNotFound)
	}
	return m, nil
}

// CloseMeeting implements meeting.Store. Only the statement that observes
// ended_at IS NULL writes the end fields.
func (s *Store) CloseMeeting(ctx context.Context, id uuid.UUID, endedAt time.Time, durationMinutes int64, reason meeting.EndReason) (*meeting.Meeting, bool, error) {
	m, err := scanMeeting(s.pool.QueryRow(ctx, `
		UPDATE meetings
		SET ended_at = $2, duration_minutes = $3, end_reason = $4
		WHERE id = $1 AND ended_at IS NULL
		RETURNING `+meetingColumns,
		id, endedAt.UTC(), durationMinutes, string(reason)))
	switch {
	case err == nil:
		return m, true, nil
	case !IsNotFoundError(err):
		return nil, false, classify(err, meeting.ErrMeetingNotFound)
	}

	// Either the meeting does not exist or somebody closed it first.
	existing, err := s.GetMeeting(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// ListOpenMeetings implements meeting.Store, oldest first.
func (s *Store) ListOpenMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE ended_at IS NULL ORDER BY started_at`)
	if err != nil {
		return nil, classify(err, nil)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (meeting.Meeting, error) {
		m, err := scanMeeting(row)
		if err != nil {
			return meeting.Meeting{}, err
		}
		return *m, nil
	})
	if err != nil {
		return nil, classify(err, nil)
	}
	return out, nil
}

// MarkWarningSent implements meeting.Store.
func (s *Store) MarkWarningSent(ctx context.Context, id uuid.UUID, w meeting.Warning, at time.Time) (bool, error) {
	var query string
	switch w {
	case meeting.WarningFiveMinutes:
		query = `UPDATE meetings SET warned_five_at = $2
			WHERE id = $1 AND ended_at IS NULL AND warned_five_at IS NULL`
	case meeting.WarningOneMinute:
		query = `UPDATE meetings SET warned_one_at = $2
			WHERE id = $1 AND ended_at IS NULL AND warned_one_at IS NULL`
	default:
		return false, nil
	}

	tag, err := s.pool.Exec(ctx, query, id, at.UTC())
	if err != nil {
		return false, classify(err, meeting.ErrMeetingNotFound)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM meetings WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, classify(err, nil)
	}
	if !exists {
		return false, classify(pgx.ErrNoRows, meeting.ErrMeetingNotFound)
	}
	return false, nil
}
