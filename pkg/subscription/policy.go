package subscription

import (
	"fmt"
	"strings"
)

// DowngradePolicy decides when a canceled subscription stops granting its plan.
type DowngradePolicy string

const (
	// DowngradeImmediately moves the user to the free plan as soon as the
	// cancellation arrives, even when the provider reports a later CancelAt.
	DowngradeImmediately DowngradePolicy = "immediate"

	// DowngradeAtCancelAt keeps the paid plan until CancelAt. The deferred
	// downgrade is applied by Manager.Reconcile.
	DowngradeAtCancelAt DowngradePolicy = "at_cancel_at"
)

// ParseDowngradePolicy parses a policy name. Empty input yields DowngradeImmediately.
func ParseDowngradePolicy(s string) (DowngradePolicy, error) {
	switch DowngradePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DowngradeImmediately:
		return DowngradeImmediately, nil
	case DowngradeAtCancelAt:
		return DowngradeAtCancelAt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDowngradePolicy, s)
	}
}

// UnmarshalText lets the policy be read from configuration.
func (p *DowngradePolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseDowngradePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
