package plans

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultFreePlanID is the plan every user falls back to without a paid subscription.
const DefaultFreePlanID = "free"

// Catalog is the validated, read-only set of plans. It is built once at startup and
// shared by every component; no method mutates it.
type Catalog struct {
	plans   map[string]Plan
	ordered []Plan
	byPrice map[string]string
	freeID  string
}

// CatalogOption configures catalog construction.
type CatalogOption func(*catalogConfig)

type catalogConfig struct {
	freeID string
	prices map[string]string
}

// WithFreePlan overrides the id of the fallback free plan.
func WithFreePlan(id string) CatalogOption {
	return func(c *catalogConfig) {
		if id != "" {
			c.freeID = id
		}
	}
}

// WithPriceMapping maps additional provider price ids to plan ids.
func WithPriceMapping(prices map[string]string) CatalogOption {
	return func(c *catalogConfig) {
		for price, planID := range prices {
			c.prices[price] = planID
		}
	}
}

// NewCatalog validates plans and freezes them into a Catalog.
func NewCatalog(list []Plan, opts ...CatalogOption) (*Catalog, error) {
	cfg := &catalogConfig{freeID: DefaultFreePlanID, prices: make(map[string]string)}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Catalog{
		plans:   make(map[string]Plan, len(list)),
		byPrice: make(map[string]string),
		freeID:  cfg.freeID,
	}

	for _, p := range list {
		if err := validatePlan(p); err != nil {
			return nil, err
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("duplicate plan id %q", p.ID))
		}
		p.ProviderPriceIDs = slices.Clone(p.ProviderPriceIDs)
		c.plans[p.ID] = p
		for _, price := range p.ProviderPriceIDs {
			if err := c.mapPrice(price, p.ID); err != nil {
				return nil, err
			}
		}
	}

	for price, planID := range cfg.prices {
		if _, ok := c.plans[planID]; !ok {
			return nil, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("price %q maps to unknown plan %q", price, planID))
		}
		if err := c.mapPrice(price, planID); err != nil {
			return nil, err
		}
	}

	free, ok := c.plans[c.freeID]
	if !ok {
		return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("free plan %q is not defined", c.freeID))
	}
	if free.IsPaid() {
		return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("free plan %q has revenue", c.freeID))
	}

	c.ordered = make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		c.ordered = append(c.ordered, p)
	}
	slices.SortFunc(c.ordered, func(a, b Plan) int {
		if a.Rank != b.Rank {
			return a.Rank - b.Rank
		}
		return strings.Compare(a.ID, b.ID)
	})

	return c, nil
}

// Load reads plans from src and builds a Catalog.
func Load(ctx context.Context, src Source, opts ...CatalogOption) (*Catalog, error) {
	list, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return NewCatalog(list, opts...)
}

func (c *Catalog) mapPrice(price, planID string) error {
	if price == "" {
		return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %q has an empty price id", planID))
	}
	if existing, ok := c.byPrice[price]; ok && existing != planID {
		return errors.Join(ErrInvalidPlanConfiguration,
			fmt.Errorf("price %q maps to both %q and %q", price, existing, planID))
	}
	c.byPrice[price] = planID
	return nil
}

func validatePlan(p Plan) error {
	invalid := func(format string, args ...any) error {
		return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %q: "+format, append([]any{p.ID}, args...)...))
	}

	switch {
	case strings.TrimSpace(p.ID) == "":
		return errors.Join(ErrInvalidPlanConfiguration, errors.New("plan id is empty"))
	case p.MonthlyRevenue.IsNegative():
		return invalid("negative monthly revenue %s", p.MonthlyRevenue)
	case p.AIBudgetFactor.IsNegative():
		return invalid("negative ai budget factor %s", p.AIBudgetFactor)
	case p.AIAllowance.IsNegative():
		return invalid("negative ai allowance %s", p.AIAllowance)
	case p.MaxMinutesPerMonth < Unlimited:
		return invalid("invalid monthly minutes %d", p.MaxMinutesPerMonth)
	case p.MaxMeetingsPerRollingWeek < Unlimited:
		return invalid("invalid weekly meetings %d", p.MaxMeetingsPerRollingWeek)
	case p.MaxMinutesPerMeeting <= 0:
		return invalid("per-meeting cap must be positive, got %d", p.MaxMinutesPerMeeting)
	case !p.Interval.Valid():
		return invalid("unknown interval %q", p.Interval)
	}
	return nil
}

// PlanFor returns the plan with the given id.
func (c *Catalog) PlanFor(id string) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, errors.Join(ErrUnknownPlan, fmt.Errorf("plan %q", id))
	}
	return p, nil
}

// PlanForPrice resolves a billing provider price id to a plan.
func (c *Catalog) PlanForPrice(priceID string) (Plan, error) {
	id, ok := c.byPrice[priceID]
	if !ok {
		return Plan{}, errors.Join(ErrUnknownPrice, fmt.Errorf("price %q", priceID))
	}
	return c.plans[id], nil
}

// FreePlan returns the fallback plan.
func (c *Catalog) FreePlan() Plan {
	return c.plans[c.freeID]
}

// IsFree reports whether id is the fallback plan.
func (c *Catalog) IsFree(id string) bool {
	return id == c.freeID
}

// TopPlan returns the highest ranked plan.
func (c *Catalog) TopPlan() Plan {
	return c.ordered[len(c.ordered)-1]
}

// IsTopPlan reports whether no plan ranks above id.
func (c *Catalog) IsTopPlan(id string) bool {
	return c.TopPlan().ID == id
}

// NextUpgrade returns the lowest ranked plan above id that grants more monthly minutes.
func (c *Catalog) NextUpgrade(id string) (Plan, bool) {
	current, ok := c.plans[id]
	if !ok {
		return Plan{}, false
	}
	for _, p := range c.ordered {
		if p.Rank <= current.Rank {
			continue
		}
		if !p.HasMonthlyMinuteLimit() || !current.HasMonthlyMinuteLimit() || p.MaxMinutesPerMonth > current.MaxMinutesPerMonth {
			return p, true
		}
	}
	return Plan{}, false
}

// Plans returns every plan ordered by rank.
func (c *Catalog) Plans() []Plan {
	return slices.Clone(c.ordered)
}
