package plans

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Source defines how plans are loaded into a Catalog.
type Source interface {
	Load(ctx context.Context) ([]Plan, error)
}

type inMemSource struct {
	plans []Plan
}

// NewInMemSource returns a Source serving copies of the given plans.
func NewInMemSource(list ...Plan) Source {
	return &inMemSource{plans: clonePlans(list)}
}

func (s *inMemSource) Load(context.Context) ([]Plan, error) {
	return clonePlans(s.plans), nil
}

func clonePlans(list []Plan) []Plan {
	out := make([]Plan, len(list))
	for i, p := range list {
		p.ProviderPriceIDs = slices.Clone(p.ProviderPriceIDs)
		out[i] = p
	}
	return out
}

type yamlSource struct {
	path string
}

// NewYAMLSource returns a Source reading plans from a YAML file:
//
//	plans:
//	  - id: pro
//	    name: Pro
//	    rank: 2
//	    interval: monthly
//	    monthly_revenue: "24.99"
//	    max_minutes_per_month: 1200
//	    max_minutes_per_meeting: 120
//	    ai_budget_factor: "0.30"
//	    provider_price_ids: [pri_01h...]
//
// Omitted caps are unlimited.
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

type planFile struct {
	Plans []planEntry `yaml:"plans"`
}

type planEntry struct {
	ID                        string   `yaml:"id"`
	Name                      string   `yaml:"name"`
	Rank                      int      `yaml:"rank"`
	Interval                  string   `yaml:"interval"`
	MonthlyRevenue            string   `yaml:"monthly_revenue"`
	MaxMinutesPerMonth        *int64   `yaml:"max_minutes_per_month"`
	MaxMinutesPerMeeting      int64    `yaml:"max_minutes_per_meeting"`
	MaxMeetingsPerRollingWeek *int64   `yaml:"max_meetings_per_rolling_week"`
	AIBudgetFactor            string   `yaml:"ai_budget_factor"`
	AIAllowance               string   `yaml:"ai_allowance"`
	ProviderPriceIDs          []string `yaml:"provider_price_ids"`
}

func (s *yamlSource) Load(ctx context.Context) ([]Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	var file planFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode plan file %s: %w", s.path, err)
	}
	if len(file.Plans) == 0 {
		return nil, fmt.Errorf("plan file %s declares no plans", s.path)
	}

	out := make([]Plan, 0, len(file.Plans))
	for _, e := range file.Plans {
		p, err := e.toPlan()
		if err != nil {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %q: %w", e.ID, err))
		}
		out = append(out, p)
	}
	return out, nil
}

func (e planEntry) toPlan() (Plan, error) {
	revenue, err := parseDecimal(e.MonthlyRevenue)
	if err != nil {
		return Plan{}, fmt.Errorf("monthly_revenue: %w", err)
	}
	factor, err := parseDecimal(e.AIBudgetFactor)
	if err != nil {
		return Plan{}, fmt.Errorf("ai_budget_factor: %w", err)
	}
	allowance, err := parseDecimal(e.AIAllowance)
	if err != nil {
		return Plan{}, fmt.Errorf("ai_allowance: %w", err)
	}

	interval := Interval(e.Interval)
	if interval == "" {
		interval = IntervalNone
	}

	return Plan{
		ID:                        e.ID,
		Name:                      e.Name,
		Rank:                      e.Rank,
		MonthlyRevenue:            revenue,
		MaxMinutesPerMonth:        capOrUnlimited(e.MaxMinutesPerMonth),
		MaxMinutesPerMeeting:      e.MaxMinutesPerMeeting,
		MaxMeetingsPerRollingWeek: capOrUnlimited(e.MaxMeetingsPerRollingWeek),
		AIBudgetFactor:            factor,
		AIAllowance:               allowance,
		Interval:                  interval,
		ProviderPriceIDs:          e.ProviderPriceIDs,
	}, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func capOrUnlimited(v *int64) int64 {
	if v == nil {
		return Unlimited
	}
	return *v
}
