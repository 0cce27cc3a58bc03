package budget

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/billingperiod"
	"github.com/Prat011/free-cluely-sub000/pkg/logger"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
	"github.com/Prat011/free-cluely-sub000/pkg/plans"
	"github.com/Prat011/free-cluely-sub000/pkg/store"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

// RollingWeek is the window of the free plan meeting count.
const RollingWeek = 7 * 24 * time.Hour

// Users loads users.
type Users interface {
	GetUser(ctx context.Context, id uuid.UUID) (*account.User, error)
}

// OpenMeetings finds a user's open meeting.
type OpenMeetings interface {
	GetOpenMeeting(ctx context.Context, userID uuid.UUID) (*meeting.Meeting, error)
}

// Subscriptions finds the subscription that anchors a user's billing period.
type Subscriptions interface {
	GetCurrentForUser(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
}

// Evaluator turns plan limits and fresh usage aggregates into decisions. It never
// caches aggregates: every call re-queries.
type Evaluator struct {
	users    Users
	meetings OpenMeetings
	subs     Subscriptions
	catalog  *plans.Catalog
	usage    *usage.Aggregator
	now      func() time.Time
	log      *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEvaluator creates an Evaluator. Panics if a dependency is nil.
func NewEvaluator(users Users, meetings OpenMeetings, subs Subscriptions, catalog *plans.Catalog, agg *usage.Aggregator, opts ...Option) *Evaluator {
	switch {
	case users == nil:
		panic("budget: Users is required")
	case meetings == nil:
		panic("budget: OpenMeetings is required")
	case subs == nil:
		panic("budget: Subscriptions is required")
	case catalog == nil:
		panic("budget: plan Catalog is required")
	case agg == nil:
		panic("budget: usage Aggregator is required")
	}

	e := &Evaluator{
		users:    users,
		meetings: meetings,
		subs:     subs,
		catalog:  catalog,
		usage:    agg,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UserPlan loads the user and resolves their cached plan. A user without a plan
// is on the free plan; a plan id missing from the catalog is an error.
func (e *Evaluator) UserPlan(ctx context.Context, userID uuid.UUID) (*account.User, plans.Plan, error) {
	u, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return nil, plans.Plan{}, err
	}
	if u.CurrentPlan == "" {
		return u, e.catalog.FreePlan(), nil
	}
	p, err := e.catalog.PlanFor(u.CurrentPlan)
	if err != nil {
		return nil, plans.Plan{}, err
	}
	return u, p, nil
}

// Period resolves the user's current billing period at now.
func (e *Evaluator) Period(ctx context.Context, userID uuid.UUID, now time.Time) (billingperiod.Period, error) {
	sub, err := e.subs.GetCurrentForUser(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return billingperiod.CalendarMonth(now), nil
		}
		return billingperiod.Period{}, err
	}
	return PeriodFor(sub, now), nil
}

// PeriodFor resolves the billing period anchored by sub. Without a subscription,
// or once it ended, periods follow the calendar month.
func PeriodFor(sub *subscription.Subscription, now time.Time) billingperiod.Period {
	if sub == nil || (sub.Status.IsEnded() && !sub.CancelPending(now)) {
		return billingperiod.CalendarMonth(now)
	}
	anchor, interval := sub.Anchor()
	return billingperiod.Current(anchor, interval, now)
}

// CanStartFreeTrial decides whether the user may start a free trial meeting now.
func (e *Evaluator) CanStartFreeTrial(ctx context.Context, userID uuid.UUID) (Decision, error) {
	u, plan, err := e.UserPlan(ctx, userID)
	if err != nil {
		return Decision{}, errors.Join(ErrFailedToEvaluate, err)
	}
	d := FreeTrialDecision(u, e.catalog.IsFree(plan.ID), e.now().UTC())
	e.logDecision(ctx, "free_trial", userID, d)
	return d, nil
}

// CanStartMeeting decides whether the user may start a meeting of the estimated
// length. An open meeting is always reported first.
func (e *Evaluator) CanStartMeeting(ctx context.Context, userID uuid.UUID, estimatedMinutes int64) (Decision, error) {
	if estimatedMinutes < 0 {
		return Decision{}, ErrInvalidEstimate
	}
	d, err := e.canStartMeeting(ctx, userID, estimatedMinutes)
	if err != nil {
		return Decision{}, errors.Join(ErrFailedToEvaluate, err)
	}
	e.logDecision(ctx, "start_meeting", userID, d)
	return d, nil
}

func (e *Evaluator) canStartMeeting(ctx context.Context, userID uuid.UUID, estimatedMinutes int64) (Decision, error) {
	now := e.now().UTC()

	if _, err := e.meetings.GetOpenMeeting(ctx, userID); err == nil {
		return deny(CodeMeetingInProgress,
			"You already have an active meeting. End it before starting a new one.",
		), nil
	} else if !store.IsNotFound(err) {
		return Decision{}, err
	}

	u, plan, err := e.UserPlan(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	if e.catalog.IsFree(plan.ID) {
		if d := FreeTrialDecision(u, true, now); !d.Allowed {
			return d, nil
		}
		if estimatedMinutes > plan.MaxMinutesPerMeeting {
			return deny(CodeMeetingTooLong,
				printer.Sprintf("Meetings on the %s plan are limited to %d minutes.", plan.Name, plan.MaxMinutesPerMeeting),
				e.upgradeSuggestions(plan)...,
			), nil
		}
		if plan.HasWeeklyMeetingLimit() {
			n, err := e.usage.MeetingsInWindow(ctx, userID, RollingWeek, now)
			if err != nil {
				return Decision{}, err
			}
			if n >= plan.MaxMeetingsPerRollingWeek {
				return deny(CodeWeeklyMeetingLimit,
					printer.Sprintf("You have held %d of %d meetings allowed in the last 7 days.", n, plan.MaxMeetingsPerRollingWeek),
					e.upgradeSuggestions(plan)...,
				), nil
			}
		}
	}

	if plan.HasMonthlyMinuteLimit() {
		period, err := e.Period(ctx, userID, now)
		if err != nil {
			return Decision{}, err
		}
		used, err := e.usage.MinutesUsed(ctx, userID, period)
		if err != nil {
			return Decision{}, err
		}
		if used+estimatedMinutes > plan.MaxMinutesPerMonth {
			return deny(CodeMonthlyQuotaExceeded,
				printer.Sprintf("You have used %d of %d meeting minutes this billing period; a %d-minute meeting would exceed your limit.",
					used, plan.MaxMinutesPerMonth, estimatedMinutes),
				e.upgradeSuggestions(plan)...,
			), nil
		}
	}

	return Allow(), nil
}

// CanAffordAIRequest decides whether an AI request of the estimated cost fits the
// plan's AI budget for the current period.
func (e *Evaluator) CanAffordAIRequest(ctx context.Context, userID uuid.UUID, estimatedCost decimal.Decimal) (Decision, error) {
	if estimatedCost.IsNegative() {
		return Decision{}, ErrInvalidEstimate
	}

	now := e.now().UTC()
	_, plan, err := e.UserPlan(ctx, userID)
	if err != nil {
		return Decision{}, errors.Join(ErrFailedToEvaluate, err)
	}
	period, err := e.Period(ctx, userID, now)
	if err != nil {
		return Decision{}, errors.Join(ErrFailedToEvaluate, err)
	}
	used, err := e.usage.AICostUsed(ctx, userID, period)
	if err != nil {
		return Decision{}, errors.Join(ErrFailedToEvaluate, err)
	}

	d := AIDecision(plan, used, estimatedCost, period)
	if !d.Allowed {
		d.Suggestions = e.upgradeSuggestions(plan)
	}
	e.logDecision(ctx, "ai_request", userID, d)
	return d, nil
}

// AIDecision allows the request iff used plus estimated stays within the plan's
// maximum AI spend.
func AIDecision(plan plans.Plan, used, estimated decimal.Decimal, period billingperiod.Period) Decision {
	if used.Add(estimated).LessThanOrEqual(plan.MaxAISpend()) {
		return Allow()
	}
	return deny(CodeAIBudgetExhausted,
		printer.Sprintf("You have reached the AI usage included in your plan for this billing period. It resets on %s.",
			period.End.Format("January 2, 2006")),
	)
}

func (e *Evaluator) upgradeSuggestions(plan plans.Plan) []string {
	if e.catalog.IsTopPlan(plan.ID) {
		return nil
	}
	next, ok := e.catalog.NextUpgrade(plan.ID)
	if !ok {
		return nil
	}
	if !next.HasMonthlyMinuteLimit() {
		return []string{printer.Sprintf("Upgrade to %s for unlimited monthly minutes.", next.Name)}
	}
	return []string{printer.Sprintf("Upgrade to %s for %d minutes per month.", next.Name, next.MaxMinutesPerMonth)}
}

func (e *Evaluator) logDecision(ctx context.Context, check string, userID uuid.UUID, d Decision) {
	e.log.DebugContext(ctx, "budget decision",
		slog.String("check", check),
		logger.UserID(userID),
		logger.Decision(d.Allowed, string(d.Code)),
	)
}
