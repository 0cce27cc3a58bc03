package metering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Prat011/free-cluely-sub000/pkg/plans"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

// Config holds the engine settings, read from the environment.
type Config struct {
	// StoreTimeout bounds every store call made by the engine.
	StoreTimeout         time.Duration                `env:"METERING_STORE_TIMEOUT" envDefault:"3s"`
	MeetingCheckInterval time.Duration                `env:"METERING_MEETING_CHECK_INTERVAL" envDefault:"15s"`
	ReconcileInterval    time.Duration                `env:"METERING_RECONCILE_INTERVAL" envDefault:"10m"`
	DowngradePolicy      subscription.DowngradePolicy `env:"METERING_DOWNGRADE_POLICY" envDefault:"immediate"`

	// PlanCatalogPath points to a YAML plan catalog. Empty uses the built-in plans.
	PlanCatalogPath string `env:"METERING_PLAN_CATALOG_PATH"`
	FreePlanID      string `env:"METERING_FREE_PLAN_ID" envDefault:"free"`

	// PriceMap maps billing provider price ids to plan ids: "pri_123:pro,pri_456:pro".
	PriceMap map[string]string `env:"METERING_PRICE_MAP"`

	// AI prices in USD per million tokens, applied to every model.
	AIInputPricePerMillion  string `env:"METERING_AI_INPUT_PRICE_PER_MILLION" envDefault:"0.15"`
	AIOutputPricePerMillion string `env:"METERING_AI_OUTPUT_PRICE_PER_MILLION" envDefault:"0.60"`
}

// DefaultConfig returns the values used when no environment is set.
func DefaultConfig() Config {
	return Config{
		StoreTimeout:            3 * time.Second,
		MeetingCheckInterval:    15 * time.Second,
		ReconcileInterval:       10 * time.Minute,
		DowngradePolicy:         subscription.DowngradeImmediately,
		FreePlanID:              "free",
		AIInputPricePerMillion:  "0.15",
		AIOutputPricePerMillion: "0.60",
	}
}

// Validate implements config.Validator.
func (c Config) Validate() error {
	var errs []error
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store timeout must be positive, got %s", c.StoreTimeout))
	}
	if c.MeetingCheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("meeting check interval must be positive, got %s", c.MeetingCheckInterval))
	}
	if c.ReconcileInterval < 0 {
		errs = append(errs, fmt.Errorf("reconcile interval must not be negative, got %s", c.ReconcileInterval))
	}
	if _, err := subscription.ParseDowngradePolicy(string(c.DowngradePolicy)); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Pricing(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// Pricing builds the AI price table from the configured per-million prices.
func (c Config) Pricing() (usage.PriceTable, error) {
	in, err := decimal.NewFromString(c.AIInputPricePerMillion)
	if err != nil {
		return nil, fmt.Errorf("ai input price %q: %w", c.AIInputPricePerMillion, err)
	}
	out, err := decimal.NewFromString(c.AIOutputPricePerMillion)
	if err != nil {
		return nil, fmt.Errorf("ai output price %q: %w", c.AIOutputPricePerMillion, err)
	}
	if in.IsNegative() || out.IsNegative() {
		return nil, errors.New("ai prices must not be negative")
	}
	return usage.PriceTable{
		usage.DefaultModel: {InputPerMillion: in, OutputPerMillion: out},
	}, nil
}

// LoadCatalog builds the plan catalog: the YAML file when configured, the
// built-in plans otherwise.
func LoadCatalog(ctx context.Context, cfg Config) (*plans.Catalog, error) {
	src := plans.NewInMemSource(plans.DefaultPlans()...)
	if cfg.PlanCatalogPath != "" {
		src = plans.NewYAMLSource(cfg.PlanCatalogPath)
	}

	var opts []plans.CatalogOption
	if cfg.FreePlanID != "" {
		opts = append(opts, plans.WithFreePlan(cfg.FreePlanID))
	}
	if len(cfg.PriceMap) > 0 {
		opts = append(opts, plans.WithPriceMapping(cfg.PriceMap))
	}
	return plans.Load(ctx, src, opts...)
}
