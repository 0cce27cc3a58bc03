// Package store defines the error taxonomy shared by every persistence backend.
// Domain packages join their own sentinel errors with these so callers can ask
// both "which record" and "may I retry".
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict reports a violated uniqueness or compare-and-set condition.
	ErrConflict = errors.New("store: conflicting write")
	// ErrUnavailable reports a transient failure: timeouts, lost connections,
	// serialization failures. Callers may retry the operation.
	ErrUnavailable = errors.New("store: temporarily unavailable")
)

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsNotFound reports whether err describes a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err describes a lost uniqueness race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Unavailable wraps err as transient when it was caused by the context deadline
// or cancellation; other errors are returned unchanged.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrUnavailable, err)
	}
	return err
}
