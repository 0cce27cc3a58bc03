package meeting

import (
	"context"
	"log/slog"
	"time"

	"github.com/Prat011/free-cluely-sub000/pkg/logger"
)

// DefaultCheckInterval is how often the supervisor sweeps open meetings.
const DefaultCheckInterval = 15 * time.Second

// SweepResult summarizes one supervisor pass.
type SweepResult struct {
	Checked  int
	Warnings int
	Closed   int
	Failed   int
}

// Supervisor periodically checks every open meeting, so caps are enforced even when
// no client is polling. It also reconciles meetings left open by crashed clients.
type Supervisor struct {
	guard    *Guard
	interval time.Duration
	log      *slog.Logger
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithCheckInterval overrides DefaultCheckInterval.
func WithCheckInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSupervisorLogger sets the logger.
func WithSupervisorLogger(l *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSupervisor creates a Supervisor driving guard.
func NewSupervisor(guard *Guard, opts ...SupervisorOption) *Supervisor {
	if guard == nil {
		panic("meeting: Guard is required")
	}
	s := &Supervisor{
		guard:    guard,
		interval: DefaultCheckInterval,
		log:      guard.log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.InfoContext(ctx, "meeting supervisor started", logger.Interval(s.interval))
	s.sweepAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "meeting supervisor shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Supervisor) sweepAndLog(ctx context.Context) {
	res, err := s.Sweep(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "meeting sweep failed", logger.Error(err))
		return
	}
	if res.Warnings > 0 || res.Closed > 0 || res.Failed > 0 {
		s.log.InfoContext(ctx, "meeting sweep finished",
			slog.Int("checked", res.Checked),
			slog.Int("warnings", res.Warnings),
			slog.Int("closed", res.Closed),
			slog.Int("failed", res.Failed),
		)
	}
}

// Sweep checks every open meeting once. A failure on one meeting is logged and
// does not stop the others.
func (s *Supervisor) Sweep(ctx context.Context) (SweepResult, error) {
	open, err := s.guard.store.ListOpenMeetings(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var res SweepResult
	for i := range open {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++

		status, err := s.guard.check(ctx, &open[i])
		if err != nil {
			res.Failed++
			s.log.WarnContext(ctx, "meeting check failed",
				logger.MeetingID(open[i].ID),
				logger.Error(err),
			)
			continue
		}
		res.Warnings += len(status.Fired)
		if status.Closed {
			res.Closed++
		}
	}
	return res, nil
}
