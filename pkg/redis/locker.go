package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLockTTL           = 30 * time.Second
	DefaultLockRetryInterval = 50 * time.Millisecond
	DefaultLockPrefix        = "metering:lock:"
)

// releaseScript deletes the key only while it still holds the caller's token,
// so an expired holder cannot release a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a cross-process mutual exclusion lock keyed by string. It satisfies
// subscription.Locker, serializing billing events per provider subscription id
// across engine replicas.
type Locker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    *slog.Logger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLockTTL bounds how long a crashed holder can block others.
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockRetryInterval sets the pause between acquisition attempts.
func WithLockRetryInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.retry = d
		}
	}
}

// WithLockPrefix namespaces lock keys.
func WithLockPrefix(prefix string) LockerOption {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// WithLockLogger sets the logger for release failures.
func WithLockLogger(log *slog.Logger) LockerOption {
	return func(l *Locker) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLocker creates a Locker on client.
func NewLocker(client redis.UniversalClient, opts ...LockerOption) *Locker {
	if client == nil {
		panic("redis: client is required")
	}
	l := &Locker{
		client: client,
		prefix: DefaultLockPrefix,
		ttl:    DefaultLockTTL,
		retry:  DefaultLockRetryInterval,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewLockerFromConfig creates a Locker with the lock settings of cfg.
func NewLockerFromConfig(client redis.UniversalClient, cfg Config, opts ...LockerOption) *Locker {
	base := []LockerOption{
		WithLockTTL(cfg.LockTTL),
		WithLockRetryInterval(cfg.LockRetryInterval),
	}
	if cfg.LockPrefix != "" {
		base = append(base, WithLockPrefix(cfg.LockPrefix))
	}
	return NewLocker(client, append(base, opts...)...)
}

// Lock blocks until key is acquired or ctx is done. The returned release func
// is safe to call more than once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Join(ErrLockNotAcquired, ctxErr)
			}
			return nil, errors.Join(ErrLockFailed, err)
		}
		if ok {
			return l.releaser(fullKey, token), nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *Locker) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// Released after the caller's context may be gone.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				l.log.Error("failed to release lock", "key", key, "error", err)
			}
		})
	}
}
