package redis

import "time"

// Config holds connection and locking settings, read from the environment.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`

	LockPrefix        string        `env:"REDIS_LOCK_PREFIX" envDefault:"metering:lock:"`
	LockTTL           time.Duration `env:"REDIS_LOCK_TTL" envDefault:"30s"`
	LockRetryInterval time.Duration `env:"REDIS_LOCK_RETRY_INTERVAL" envDefault:"50ms"`
}
