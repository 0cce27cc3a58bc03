package usage

import "errors"

var (
	ErrUnknownModel        = errors.New("usage: no pricing for model")
	ErrInvalidUsage        = errors.New("usage: invalid usage values")
	ErrRecorderNotSet      = errors.New("usage: recorder not configured")
	ErrFailedToAggregate   = errors.New("usage: failed to aggregate usage")
	ErrFailedToRecordUsage = errors.New("usage: failed to record ai usage")
)
