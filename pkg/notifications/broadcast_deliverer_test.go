package notifications_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
)

func receive(t *testing.T, ch <-chan notifications.Notification) notifications.Notification {
	t.Helper()
	select {
	case n, ok := <-ch:
		require.True(t, ok, "channel closed")
		return n
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
	return notifications.Notification{}
}

func TestBroadcastDeliverer(t *testing.T) {
	t.Parallel()

	t.Run("delivers only to the addressed user", func(t *testing.T) {
		t.Parallel()

		d := notifications.NewBroadcastDeliverer(4)
		defer d.Close()

		ctx := context.Background()
		alice, bob := uuid.New(), uuid.New()
		aliceCh := d.Subscribe(ctx, alice)
		bobCh := d.Subscribe(ctx, bob)

		require.NoError(t, d.Deliver(ctx, notifications.Notification{UserID: alice, Message: "five minutes left"}))
		assert.Equal(t, "five minutes left", receive(t, aliceCh).Message)

		select {
		case n := <-bobCh:
			t.Fatalf("unexpected notification for bob: %+v", n)
		default:
		}
	})

	t.Run("slow subscribers drop instead of blocking", func(t *testing.T) {
		t.Parallel()

		d := notifications.NewBroadcastDeliverer(1)
		defer d.Close()

		ctx := context.Background()
		user := uuid.New()
		ch := d.Subscribe(ctx, user)

		require.NoError(t, d.Deliver(ctx, notifications.Notification{UserID: user, Message: "first"}))
		require.NoError(t, d.Deliver(ctx, notifications.Notification{UserID: user, Message: "second"}))

		assert.Equal(t, "first", receive(t, ch).Message)
	})

	t.Run("context cancellation closes the subscription", func(t *testing.T) {
		t.Parallel()

		d := notifications.NewBroadcastDeliverer(1)
		defer d.Close()

		ctx, cancel := context.WithCancel(context.Background())
		ch := d.Subscribe(ctx, uuid.New())
		cancel()

		assert.Eventually(t, func() bool {
			select {
			case _, ok := <-ch:
				return !ok
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("evicts least recently used hubs", func(t *testing.T) {
		t.Parallel()

		d := notifications.NewBroadcastDeliverer(1, notifications.WithMaxHubs(2))
		defer d.Close()

		ctx := context.Background()
		first := d.Subscribe(ctx, uuid.New())
		d.Subscribe(ctx, uuid.New())
		d.Subscribe(ctx, uuid.New())

		_, ok := <-first
		assert.False(t, ok, "evicted subscriber is closed")
	})

	t.Run("close ends every subscription", func(t *testing.T) {
		t.Parallel()

		d := notifications.NewBroadcastDeliverer(1)
		ch := d.Subscribe(context.Background(), uuid.New())
		require.NoError(t, d.Close())

		_, ok := <-ch
		assert.False(t, ok)
	})
}
