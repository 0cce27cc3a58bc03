package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("redis: failed to parse connection string")
	ErrRedisNotReady                = errors.New("redis: server did not become ready in time")
	ErrEmptyConnectionURL           = errors.New("redis: empty connection url, set REDIS_URL")
	ErrHealthcheckFailed            = errors.New("redis: healthcheck failed")
	ErrLockNotAcquired              = errors.New("redis: lock not acquired")
	ErrLockFailed                   = errors.New("redis: lock command failed")
)
