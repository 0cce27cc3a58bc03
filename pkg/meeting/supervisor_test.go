package meeting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prat011/free-cluely-sub000/pkg/logger"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
)

func TestSupervisorSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newClock(start)
	g, s := newGuard(t, c)
	sup := meeting.NewSupervisor(g, meeting.WithSupervisorLogger(logger.Discard()))

	expiring, err := g.Start(ctx, uuid.New(), freePlan)
	require.NoError(t, err)

	c.Advance(12 * time.Minute)
	fresh, err := g.Start(ctx, uuid.New(), freePlan)
	require.NoError(t, err)

	c.Advance(3 * time.Minute)
	res, err := sup.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, meeting.SweepResult{Checked: 2, Closed: 1}, res)

	closed, err := s.GetMeeting(ctx, expiring.ID)
	require.NoError(t, err)
	assert.Equal(t, meeting.EndReasonCapReached, closed.EndReason)

	open, err := s.GetMeeting(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, open.IsOpen())

	c.Advance(8 * time.Minute)
	res, err = sup.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, meeting.SweepResult{Checked: 1, Warnings: 1}, res)
}

func TestSupervisorRun(t *testing.T) {
	t.Parallel()

	c := newClock(start)
	g, _ := newGuard(t, c)
	sup := meeting.NewSupervisor(g,
		meeting.WithCheckInterval(5*time.Millisecond),
		meeting.WithSupervisorLogger(logger.Discard()),
	)

	m, err := g.Start(context.Background(), uuid.New(), freePlan)
	require.NoError(t, err)
	c.Advance(20 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := g.Get(context.Background(), m.ID)
		return err == nil && !got.IsOpen()
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
}
