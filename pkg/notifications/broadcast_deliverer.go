package notifications

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxHubs bounds the number of per-user hubs kept in memory.
const DefaultMaxHubs = 10_000

// BroadcastDeliverer delivers notifications in-process to subscribers of each user,
// for example an SSE or websocket handler. Slow subscribers lose messages instead of
// blocking the sender. Hubs of the least recently active users are evicted and
// their subscribers closed.
type BroadcastDeliverer struct {
	hubs       *lru.Cache[uuid.UUID, *hub]
	bufferSize int
	logger     *slog.Logger
	mu         sync.Mutex
}

// BroadcastOption configures a BroadcastDeliverer.
type BroadcastOption func(*broadcastConfig)

type broadcastConfig struct {
	maxHubs int
	logger  *slog.Logger
}

// WithMaxHubs overrides DefaultMaxHubs.
func WithMaxHubs(n int) BroadcastOption {
	return func(c *broadcastConfig) {
		if n > 0 {
			c.maxHubs = n
		}
	}
}

// WithBroadcastLogger sets the logger.
func WithBroadcastLogger(l *slog.Logger) BroadcastOption {
	return func(c *broadcastConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewBroadcastDeliverer creates a deliverer with bufferSize slots per subscriber.
func NewBroadcastDeliverer(bufferSize int, opts ...BroadcastOption) *BroadcastDeliverer {
	cfg := &broadcastConfig{maxHubs: DefaultMaxHubs, logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	hubs, err := lru.NewWithEvict(cfg.maxHubs, func(_ uuid.UUID, h *hub) {
		h.close()
	})
	if err != nil {
		// only possible with a non-positive size, which the option rules out
		panic(err)
	}

	return &BroadcastDeliverer{
		hubs:       hubs,
		bufferSize: max(bufferSize, 1),
		logger:     cfg.logger,
	}
}

func (d *BroadcastDeliverer) hubFor(userID uuid.UUID) *hub {
	d.mu.Lock()
	defer d.mu.Unlock()

	h, ok := d.hubs.Get(userID)
	if !ok {
		h = newHub(d.bufferSize)
		d.hubs.Add(userID, h)
	}
	return h
}

func (d *BroadcastDeliverer) Deliver(ctx context.Context, notif Notification) error {
	if dropped := d.hubFor(notif.UserID).publish(notif); dropped > 0 {
		d.logger.LogAttrs(ctx, slog.LevelDebug, "notification dropped for slow subscribers",
			slog.String("notification_id", notif.ID.String()),
			slog.Int("dropped", dropped),
		)
	}
	return nil
}

// Subscribe returns a channel of the user's notifications. It is closed when ctx
// ends, when the user's hub is evicted, or when the deliverer is closed.
func (d *BroadcastDeliverer) Subscribe(ctx context.Context, userID uuid.UUID) <-chan Notification {
	h := d.hubFor(userID)
	ch := h.subscribe()
	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			h.unsubscribe(ch)
		}()
	}
	return ch
}

// Close closes every hub and subscriber.
func (d *BroadcastDeliverer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hubs.Purge()
	return nil
}

type hub struct {
	mu     sync.Mutex
	subs   map[chan Notification]struct{}
	buffer int
	closed bool
}

func newHub(buffer int) *hub {
	return &hub{subs: make(map[chan Notification]struct{}), buffer: buffer}
}

func (h *hub) subscribe() chan Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Notification, h.buffer)
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(ch chan Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *hub) publish(n Notification) (dropped int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- n:
		default:
			dropped++
		}
	}
	return dropped
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	clear(h.subs)
}
