package plans

import "errors"

var (
	ErrUnknownPlan              = errors.New("plans: unknown plan")
	ErrUnknownPrice             = errors.New("plans: unknown provider price")
	ErrInvalidPlanConfiguration = errors.New("plans: invalid plan configuration")
	ErrFailedToLoadPlans        = errors.New("plans: failed to load plans")
)
