package budget

import "errors"

var (
	ErrFailedToEvaluate  = errors.New("budget: failed to evaluate policy")
	ErrInvalidEstimate   = errors.New("budget: estimate must not be negative")
	ErrFailedToLoadStats = errors.New("budget: failed to load usage stats")
)
