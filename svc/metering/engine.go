package metering

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Prat011/free-cluely-sub000/pkg/budget"
	"github.com/Prat011/free-cluely-sub000/pkg/logger"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
	"github.com/Prat011/free-cluely-sub000/pkg/plans"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

// Engine composes the plan catalog, usage aggregation, budget evaluation, the
// meeting guard and the subscription manager behind one API. Every store call it
// makes runs under Config.StoreTimeout.
type Engine struct {
	store      Store
	catalog    *plans.Catalog
	usage      *usage.Aggregator
	evaluator  *budget.Evaluator
	guard      *meeting.Guard
	supervisor *meeting.Supervisor
	billing    *subscription.Manager
	paddle     *subscription.PaddleProvider
	notifier   *notifications.Manager
	stream     Subscriber
	metrics    *Metrics

	reconcileInterval time.Duration
	now               func() time.Time
	log               *slog.Logger
}

type options struct {
	locker   subscription.Locker
	paddle   *subscription.PaddleProvider
	notifier *notifications.Manager
	stream   Subscriber
	metrics  *Metrics
	now      func() time.Time
	log      *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithLocker serializes billing events across processes. Defaults to an
// in-process lock.
func WithLocker(l subscription.Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithPaddle enables HandlePaddleWebhook.
func WithPaddle(p *subscription.PaddleProvider) Option {
	return func(o *options) { o.paddle = p }
}

// WithNotifications routes warnings, forced closes, quota and plan changes to m.
func WithNotifications(m *notifications.Manager) Option {
	return func(o *options) { o.notifier = m }
}

// Subscriber streams notifications to live clients as they are sent.
// *notifications.BroadcastDeliverer implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, userID uuid.UUID) <-chan notifications.Notification
}

// WithNotificationStream enables SubscribeNotifications. s should be the
// deliverer the notifications manager sends through.
func WithNotificationStream(s Subscriber) Option {
	return func(o *options) { o.stream = s }
}

// WithMetrics records decision, meeting and billing counters.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger of every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// New wires an Engine over st. The configuration is validated first.
func New(st Store, catalog *plans.Catalog, cfg Config, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("store is required"))
	}
	if catalog == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("plan catalog is required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prices, err := cfg.Pricing()
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	o := &options{now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{
		store:             newBoundedStore(st, cfg.StoreTimeout),
		catalog:           catalog,
		paddle:            o.paddle,
		notifier:          o.notifier,
		stream:            o.stream,
		metrics:           o.metrics,
		reconcileInterval: cfg.ReconcileInterval,
		now:               o.now,
		log:               o.log.With(logger.Component("metering")),
	}

	e.usage = usage.NewAggregator(e.store,
		usage.WithRecorder(e.store),
		usage.WithPricing(prices),
		usage.WithClock(o.now),
		usage.WithLogger(o.log),
	)
	e.evaluator = budget.NewEvaluator(e.store, e.store, e.store, catalog, e.usage,
		budget.WithClock(o.now),
		budget.WithLogger(o.log),
	)

	guardOpts := []meeting.Option{
		meeting.WithClock(o.now),
		meeting.WithLogger(o.log),
		meeting.WithCloseHook(e.onMeetingClosed),
	}
	billingOpts := []subscription.Option{
		subscription.WithDowngradePolicy(cfg.DowngradePolicy),
		subscription.WithClock(o.now),
		subscription.WithLogger(o.log),
		subscription.WithLocker(o.locker),
	}
	if o.notifier != nil {
		guardOpts = append(guardOpts, meeting.WithNotifier(o.notifier))
		billingOpts = append(billingOpts, subscription.WithNotifier(o.notifier))
	}

	e.guard = meeting.NewGuard(e.store, guardOpts...)
	e.supervisor = meeting.NewSupervisor(e.guard,
		meeting.WithCheckInterval(cfg.MeetingCheckInterval),
		meeting.WithSupervisorLogger(o.log),
	)
	e.billing = subscription.NewManager(e.store, e.store, catalog, billingOpts...)
	return e, nil
}

// Catalog returns the plan catalog the engine was built with.
func (e *Engine) Catalog() *plans.Catalog {
	return e.catalog
}

// CanStartMeeting decides whether the user may start a meeting of the estimated
// length.
func (e *Engine) CanStartMeeting(ctx context.Context, userID uuid.UUID, estimatedMinutes int64) (budget.Decision, error) {
	d, err := e.evaluator.CanStartMeeting(ctx, userID, estimatedMinutes)
	return e.observe("start_meeting", d, err)
}

// CanStartFreeTrial decides whether a free user's trial cooldown has passed.
func (e *Engine) CanStartFreeTrial(ctx context.Context, userID uuid.UUID) (budget.Decision, error) {
	d, err := e.evaluator.CanStartFreeTrial(ctx, userID)
	return e.observe("free_trial", d, err)
}

// CanAffordAIRequest decides whether an AI request of the estimated cost fits the
// user's AI budget for the current period.
func (e *Engine) CanAffordAIRequest(ctx context.Context, userID uuid.UUID, estimatedCost decimal.Decimal) (budget.Decision, error) {
	d, err := e.evaluator.CanAffordAIRequest(ctx, userID, estimatedCost)
	return e.observe("ai_request", d, err)
}

func (e *Engine) observe(check string, d budget.Decision, err error) (budget.Decision, error) {
	if err != nil {
		e.metrics.failure(check, err)
		return budget.Decision{}, err
	}
	e.metrics.decision(check, string(d.Code))
	return d, nil
}

// GetCompleteUsageStats returns the user's usage for the current billing period.
func (e *Engine) GetCompleteUsageStats(ctx context.Context, userID uuid.UUID) (budget.UsageStats, error) {
	stats, err := e.evaluator.CompleteUsageStats(ctx, userID)
	if err != nil {
		e.metrics.failure("usage_stats", err)
	}
	return stats, err
}

// StartMeeting gates and opens a meeting. A denial is returned as a decision with
// a nil meeting. Starting a meeting on the free plan consumes the free trial.
func (e *Engine) StartMeeting(ctx context.Context, userID uuid.UUID, estimatedMinutes int64) (*meeting.Meeting, budget.Decision, error) {
	d, err := e.CanStartMeeting(ctx, userID, estimatedMinutes)
	if err != nil || !d.Allowed {
		return nil, d, err
	}

	_, plan, err := e.evaluator.UserPlan(ctx, userID)
	if err != nil {
		e.metrics.failure("start_meeting", err)
		return nil, budget.Decision{}, errors.Join(ErrFailedToStartMeeting, err)
	}

	m, err := e.guard.Start(ctx, userID, plan)
	if err != nil {
		e.metrics.failure("start_meeting", err)
		return nil, budget.Decision{}, err
	}

	if e.catalog.IsFree(plan.ID) {
		// The rolling week count still caps the user if this write is lost.
		if err := e.store.MarkFreeTrialStarted(ctx, userID, m.StartedAt); err != nil {
			e.log.ErrorContext(ctx, "failed to stamp free trial",
				logger.UserID(userID),
				logger.MeetingID(m.ID),
				logger.Error(err),
			)
		}
	}
	return m, d, nil
}

// EndMeeting closes a meeting at the user's request. Idempotent.
func (e *Engine) EndMeeting(ctx context.Context, meetingID uuid.UUID) (*meeting.Meeting, error) {
	m, err := e.guard.End(ctx, meetingID)
	if err != nil {
		e.metrics.failure("end_meeting", err)
	}
	return m, err
}

// GetMeeting loads a meeting without evaluating its cap.
func (e *Engine) GetMeeting(ctx context.Context, meetingID uuid.UUID) (*meeting.Meeting, error) {
	m, err := e.guard.Get(ctx, meetingID)
	if err != nil {
		e.metrics.failure("get_meeting", err)
	}
	return m, err
}

// CheckMeeting fires due warnings and force-closes the meeting once its cap is
// reached.
func (e *Engine) CheckMeeting(ctx context.Context, meetingID uuid.UUID) (meeting.Status, error) {
	st, err := e.guard.Check(ctx, meetingID)
	if err != nil {
		e.metrics.failure("check_meeting", err)
	}
	return st, err
}

// onMeetingClosed counts the close and reports a monthly quota newly used up.
func (e *Engine) onMeetingClosed(ctx context.Context, m *meeting.Meeting) {
	e.metrics.meetingClosed(string(m.EndReason))
	if m.EndedAt == nil || m.DurationMinutes == nil || *m.DurationMinutes == 0 {
		return
	}

	plan, err := e.catalog.PlanFor(m.PlanID)
	if err != nil || !plan.HasMonthlyMinuteLimit() {
		return
	}
	period, err := e.evaluator.Period(ctx, m.UserID, *m.EndedAt)
	if err != nil {
		e.log.WarnContext(ctx, "quota check after meeting close failed", logger.MeetingID(m.ID), logger.Error(err))
		return
	}
	used, err := e.usage.MinutesUsed(ctx, m.UserID, period)
	if err != nil {
		e.log.WarnContext(ctx, "quota check after meeting close failed", logger.MeetingID(m.ID), logger.Error(err))
		return
	}

	limit := plan.MaxMinutesPerMonth
	if used < limit || used-*m.DurationMinutes >= limit {
		return
	}
	e.notify(ctx, notifications.Notification{
		UserID:  m.UserID,
		Kind:    notifications.KindQuotaExceeded,
		Type:    notifications.TypeWarning,
		Title:   "Monthly minutes used up",
		Message: "You have used all meeting minutes included in your plan for this billing period.",
		Data: map[string]any{
			"minutes_used":  used,
			"minutes_limit": limit,
			"period_end":    period.End,
		},
	})
}

// RecordAIUsage prices and stores a completed AI call.
func (e *Engine) RecordAIUsage(ctx context.Context, userID uuid.UUID, model string, inputTokens, outputTokens int64) (*usage.AIUsageRecord, error) {
	rec, err := e.usage.RecordAIUsage(ctx, userID, model, inputTokens, outputTokens)
	return e.afterAIRecord(ctx, rec, err)
}

// RecordAICost stores an AI call whose cost the caller already knows.
func (e *Engine) RecordAICost(ctx context.Context, userID uuid.UUID, model string, cost decimal.Decimal) (*usage.AIUsageRecord, error) {
	rec, err := e.usage.RecordAICost(ctx, userID, model, cost)
	return e.afterAIRecord(ctx, rec, err)
}

// afterAIRecord reports an AI budget exhausted by this record.
func (e *Engine) afterAIRecord(ctx context.Context, rec *usage.AIUsageRecord, err error) (*usage.AIUsageRecord, error) {
	if err != nil {
		e.metrics.failure("record_ai_usage", err)
		return nil, errors.Join(ErrFailedToRecordUsage, err)
	}
	e.metrics.aiCost(rec.CostUSD.InexactFloat64())

	_, plan, err := e.evaluator.UserPlan(ctx, rec.UserID)
	if err != nil {
		e.log.WarnContext(ctx, "budget check after ai usage failed", logger.UserID(rec.UserID), logger.Error(err))
		return rec, nil
	}
	period, err := e.evaluator.Period(ctx, rec.UserID, rec.CreatedAt)
	if err != nil {
		e.log.WarnContext(ctx, "budget check after ai usage failed", logger.UserID(rec.UserID), logger.Error(err))
		return rec, nil
	}
	spent, err := e.usage.AICostUsed(ctx, rec.UserID, period)
	if err != nil {
		e.log.WarnContext(ctx, "budget check after ai usage failed", logger.UserID(rec.UserID), logger.Error(err))
		return rec, nil
	}

	limit := plan.MaxAISpend()
	if spent.LessThan(limit) || spent.Sub(rec.CostUSD).GreaterThanOrEqual(limit) {
		return rec, nil
	}
	e.notify(ctx, notifications.Notification{
		UserID:  rec.UserID,
		Kind:    notifications.KindAIBudgetExhausted,
		Type:    notifications.TypeWarning,
		Title:   "AI usage limit reached",
		Message: "You have reached the AI usage included in your plan for this billing period.",
		Data: map[string]any{
			"period_end": period.End,
			"plan_id":    plan.ID,
		},
	})
	return rec, nil
}

// ApplyBillingEvent applies one normalized billing provider event.
func (e *Engine) ApplyBillingEvent(ctx context.Context, name, providerSubscriptionID string, payload subscription.Payload) error {
	err := e.billing.ApplyBillingEvent(ctx, name, providerSubscriptionID, payload)
	if err != nil {
		e.metrics.billingEvent(name, "error")
		e.metrics.failure("billing_event", err)
		return err
	}
	e.metrics.billingEvent(name, "ok")
	return nil
}

// HandlePaddleWebhook verifies a Paddle webhook and applies it. Paddle events
// that carry no subscription are acknowledged without effect.
func (e *Engine) HandlePaddleWebhook(ctx context.Context, body []byte, signature string) (*subscription.Event, error) {
	if e.paddle == nil {
		return nil, ErrPaddleNotConfigured
	}
	event, err := e.paddle.ParseWebhook(ctx, body, signature)
	if err != nil {
		e.metrics.billingEvent("paddle", "rejected")
		return nil, err
	}
	if event.Name == "" || event.ProviderSubscriptionID == "" {
		e.log.DebugContext(ctx, "paddle event has no subscription effect",
			slog.String("paddle_event", event.ProviderEvent),
		)
		e.metrics.billingEvent(event.ProviderEvent, "ignored")
		return event, nil
	}
	return event, e.ApplyBillingEvent(ctx, string(event.Name), event.ProviderSubscriptionID, event.Payload)
}

// Reconcile applies deferred downgrades and repairs cached plans of ended
// subscriptions.
func (e *Engine) Reconcile(ctx context.Context) (subscription.ReconcileResult, error) {
	res, err := e.billing.Reconcile(ctx)
	if err != nil {
		e.metrics.failure("reconcile", err)
	}
	return res, err
}

// SweepMeetings checks every open meeting once.
func (e *Engine) SweepMeetings(ctx context.Context) (meeting.SweepResult, error) {
	return e.supervisor.Sweep(ctx)
}

// RunSupervisor enforces meeting caps until ctx is done.
func (e *Engine) RunSupervisor(ctx context.Context) error {
	return e.supervisor.Run(ctx)
}

// RunReconciler calls Reconcile on every ReconcileInterval until ctx is done. A
// zero interval disables it.
func (e *Engine) RunReconciler(ctx context.Context) error {
	if e.reconcileInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(e.reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res, err := e.Reconcile(ctx)
			if err != nil {
				e.log.ErrorContext(ctx, "reconcile failed", logger.Error(err))
				continue
			}
			if res.Checked > 0 {
				e.log.InfoContext(ctx, "reconcile finished",
					slog.Int("checked", res.Checked),
					slog.Int("downgraded", res.Downgraded),
					slog.Int("failed", res.Failed),
				)
			}
		}
	}
}

// Notifications lists the user's stored notifications, newest first.
func (e *Engine) Notifications(ctx context.Context, userID uuid.UUID, opts notifications.ListOptions) ([]notifications.Notification, error) {
	if e.notifier == nil {
		return nil, ErrNotificationsOff
	}
	return e.notifier.List(ctx, userID, opts)
}

// MarkNotificationsRead marks the given notifications of the user read.
func (e *Engine) MarkNotificationsRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) error {
	if e.notifier == nil {
		return ErrNotificationsOff
	}
	return e.notifier.MarkRead(ctx, userID, ids...)
}

// SubscribeNotifications streams the user's notifications until ctx ends.
func (e *Engine) SubscribeNotifications(ctx context.Context, userID uuid.UUID) (<-chan notifications.Notification, error) {
	if e.stream == nil {
		return nil, ErrNotificationsOff
	}
	return e.stream.Subscribe(ctx, userID), nil
}

func (e *Engine) notify(ctx context.Context, n notifications.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, n); err != nil {
		e.log.WarnContext(ctx, "failed to send notification",
			logger.UserID(n.UserID),
			slog.String("kind", string(n.Kind)),
			logger.Error(err),
		)
	}
}
