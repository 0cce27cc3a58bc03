package meeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Prat011/free-cluely-sub000/pkg/logger"
	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
	"github.com/Prat011/free-cluely-sub000/pkg/plans"
	"github.com/Prat011/free-cluely-sub000/pkg/store"
)

// Notifier receives user-facing meeting signals.
type Notifier interface {
	Send(ctx context.Context, notif notifications.Notification) error
}

// CloseHook runs after a meeting transitions to closed. It does not run for
// repeated closes of the same meeting.
type CloseHook func(ctx context.Context, m *Meeting)

// Status is the result of a Check.
type Status struct {
	Meeting   *Meeting
	Remaining time.Duration
	Fired     []Warning
	Closed    bool
}

// Guard enforces the meeting lifecycle and the per-meeting cap. All decisions are
// re-derived from stored timestamps, so any number of processes may check the same
// meeting concurrently.
type Guard struct {
	store    Store
	notifier Notifier
	hooks    []CloseHook
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithNotifier sets where warnings and forced closes are reported.
func WithNotifier(n Notifier) Option {
	return func(g *Guard) { g.notifier = n }
}

// WithCloseHook registers a hook run after every successful close.
func WithCloseHook(h CloseHook) Option {
	return func(g *Guard) {
		if h != nil {
			g.hooks = append(g.hooks, h)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGuard creates a Guard. Panics if s is nil.
func NewGuard(s Store, opts ...Option) *Guard {
	if s == nil {
		panic("meeting: Store is required")
	}
	g := &Guard{
		store: s,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start opens a meeting for the user with the plan's per-meeting cap. The open
// meeting check and the insert are a single store operation; a lost race returns
// ErrMeetingAlreadyOpen.
func (g *Guard) Start(ctx context.Context, userID uuid.UUID, plan plans.Plan) (*Meeting, error) {
	if plan.MaxMinutesPerMeeting <= 0 {
		return nil, errors.Join(ErrFailedToStartMeeting, ErrInvalidMeetingCap)
	}
	if _, err := lifecycle.Fire(ctx, StateUnstarted, EventStart, nil); err != nil {
		return nil, errors.Join(ErrFailedToStartMeeting, err)
	}

	m := &Meeting{
		ID:         uuid.New(),
		UserID:     userID,
		PlanID:     plan.ID,
		MaxMinutes: plan.MaxMinutesPerMeeting,
		StartedAt:  g.now().UTC(),
	}

	if err := g.store.CreateOpenMeeting(ctx, m); err != nil {
		if store.IsConflict(err) {
			return nil, errors.Join(ErrMeetingAlreadyOpen, err)
		}
		return nil, errors.Join(ErrFailedToStartMeeting, err)
	}

	g.log.InfoContext(ctx, "meeting started",
		logger.MeetingID(m.ID),
		logger.UserID(userID),
		logger.PlanID(plan.ID),
		slog.Int64("max_minutes", m.MaxMinutes),
	)
	return m, nil
}

// End closes the meeting at the user's request. A meeting already past its cap is
// closed at the deadline as a forced close. Ending a closed meeting returns the
// stored record unchanged.
func (g *Guard) End(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	return g.close(ctx, id, EndReasonUser)
}

// ForceClose closes the meeting because its cap was reached. Idempotent.
func (g *Guard) ForceClose(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	return g.close(ctx, id, EndReasonCapReached)
}

// Get loads a meeting.
func (g *Guard) Get(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	m, err := g.store.GetMeeting(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errors.Join(ErrMeetingNotFound, err)
		}
		return nil, err
	}
	return m, nil
}

// OpenMeeting returns the user's open meeting, if any.
func (g *Guard) OpenMeeting(ctx context.Context, userID uuid.UUID) (*Meeting, bool, error) {
	m, err := g.store.GetOpenMeeting(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return m, true, nil
}

func (g *Guard) close(ctx context.Context, id uuid.UUID, reason EndReason) (*Meeting, error) {
	m, err := g.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	endedAt := g.now().UTC()
	if m.IsOpen() && IsExpired(m, endedAt) {
		// the cap is the cutoff even when nothing checked the meeting in time
		endedAt = m.Deadline()
		reason = EndReasonCapReached
	}

	from := m.State()
	if _, err := lifecycle.Fire(ctx, from, closeEvent(reason), nil); err != nil {
		return nil, errors.Join(ErrFailedToCloseMeeting, err)
	}
	if from == StateClosed {
		return m, nil
	}

	duration := DurationMinutes(m.StartedAt, endedAt)

	closed, changed, err := g.store.CloseMeeting(ctx, id, endedAt, duration, reason)
	if err != nil {
		return nil, errors.Join(ErrFailedToCloseMeeting, err)
	}
	if !changed {
		// another caller closed it first; report their result
		return closed, nil
	}

	g.log.InfoContext(ctx, "meeting closed",
		logger.MeetingID(id),
		logger.UserID(closed.UserID),
		slog.String("reason", string(reason)),
		slog.Int64("duration_minutes", duration),
	)

	if reason == EndReasonCapReached {
		g.notify(ctx, notifications.Notification{
			UserID:  closed.UserID,
			Kind:    notifications.KindMeetingForceClosed,
			Type:    notifications.TypeWarning,
			Title:   "Meeting ended",
			Message: fmt.Sprintf("This meeting reached the %d-minute limit of your plan.", closed.MaxMinutes),
			Data: map[string]any{
				"meeting_id":       closed.ID.String(),
				"duration_minutes": duration,
			},
		})
	}

	for _, hook := range g.hooks {
		hook(ctx, closed)
	}
	return closed, nil
}

// Check re-evaluates an open meeting against its cap: due warnings fire in order,
// each at most once, and a meeting past its cap is force-closed.
func (g *Guard) Check(ctx context.Context, id uuid.UUID) (Status, error) {
	m, err := g.Get(ctx, id)
	if err != nil {
		return Status{}, err
	}
	return g.check(ctx, m)
}

func (g *Guard) check(ctx context.Context, m *Meeting) (Status, error) {
	if !m.IsOpen() {
		return Status{Meeting: m, Closed: true}, nil
	}

	now := g.now().UTC()
	if IsExpired(m, now) {
		closed, err := g.ForceClose(ctx, m.ID)
		if err != nil {
			return Status{}, err
		}
		return Status{Meeting: closed, Closed: true}, nil
	}

	status := Status{Meeting: m, Remaining: m.Deadline().Sub(now)}
	for _, w := range Warnings {
		if status.Remaining > w.Threshold() || m.WarningSent(w) {
			continue
		}
		fired, err := g.store.MarkWarningSent(ctx, m.ID, w, now)
		if err != nil {
			return Status{}, fmt.Errorf("mark %s warning: %w", w, err)
		}
		if !fired {
			continue
		}
		status.Fired = append(status.Fired, w)
		g.notify(ctx, warningNotification(m, w, status.Remaining))
	}
	return status, nil
}

func warningNotification(m *Meeting, w Warning, remaining time.Duration) notifications.Notification {
	minutes := int64(w.Threshold() / time.Minute)
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return notifications.Notification{
		UserID:  m.UserID,
		Kind:    notifications.KindMeetingWarning,
		Type:    notifications.TypeWarning,
		Title:   fmt.Sprintf("%d %s left", minutes, unit),
		Message: fmt.Sprintf("Your plan allows %d minutes per meeting. This meeting ends automatically in %d %s.", m.MaxMinutes, minutes, unit),
		Data: map[string]any{
			"meeting_id":        m.ID.String(),
			"warning":           string(w),
			"remaining_seconds": int64(remaining / time.Second),
		},
	}
}

func (g *Guard) notify(ctx context.Context, n notifications.Notification) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Send(ctx, n); err != nil {
		g.log.WarnContext(ctx, "failed to send meeting notification",
			logger.UserID(n.UserID),
			slog.String("kind", string(n.Kind)),
			logger.Error(err),
		)
	}
}
