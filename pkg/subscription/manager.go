package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/logger"
	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
	"github.com/Prat011/free-cluely-sub000/pkg/plans"
	"github.com/Prat011/free-cluely-sub000/pkg/statemachine"
	"github.com/Prat011/free-cluely-sub000/pkg/store"
)

// Notifier receives plan change signals.
type Notifier interface {
	Send(ctx context.Context, notif notifications.Notification) error
}

// Manager applies billing provider events to subscriptions and keeps each user's
// cached plan consistent with them.
type Manager struct {
	store    Store
	users    account.Store
	catalog  *plans.Catalog
	locker   Locker
	policy   DowngradePolicy
	notifier Notifier
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker replaces the default in-process locker.
func WithLocker(l Locker) Option {
	return func(m *Manager) {
		if l != nil {
			m.locker = l
		}
	}
}

// WithDowngradePolicy sets when cancellations take the paid plan away.
func WithDowngradePolicy(p DowngradePolicy) Option {
	return func(m *Manager) {
		if p != "" {
			m.policy = p
		}
	}
}

// WithNotifier sets where plan changes are reported.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates a Manager. Panics if any dependency is nil.
func NewManager(s Store, users account.Store, catalog *plans.Catalog, opts ...Option) *Manager {
	if s == nil {
		panic("subscription: Store is required")
	}
	if users == nil {
		panic("subscription: account Store is required")
	}
	if catalog == nil {
		panic("subscription: plan Catalog is required")
	}

	m := &Manager{
		store:   s,
		users:   users,
		catalog: catalog,
		locker:  NewMemoryLocker(),
		policy:  DowngradeImmediately,
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the configured downgrade policy.
func (m *Manager) Policy() DowngradePolicy {
	return m.policy
}

// ApplyBillingEvent applies one provider event. Unknown event names, events for
// unknown subscriptions and transitions the current status does not allow are
// logged and ignored. Every effect overwrites final state, so replays converge.
func (m *Manager) ApplyBillingEvent(ctx context.Context, name, providerSubscriptionID string, payload Payload) error {
	event := EventName(name)
	log := m.log.With(logger.Event(name), logger.SubscriptionID(providerSubscriptionID))

	if !machine.Handles(event) {
		log.WarnContext(ctx, "ignoring billing event", logger.Error(ErrUnhandledBillingEvent))
		return nil
	}
	if providerSubscriptionID == "" {
		return errors.Join(ErrFailedToApplyEvent, ErrMissingSubscriptionID)
	}

	unlock, err := m.locker.Lock(ctx, providerSubscriptionID)
	if err != nil {
		return errors.Join(ErrFailedToAcquireLock, store.Unavailable(err))
	}
	defer unlock()

	sub, err := m.store.GetByProviderID(ctx, providerSubscriptionID)
	switch {
	case err == nil:
	case store.IsNotFound(err) && event == EventCreated:
		sub, err = m.newSubscription(ctx, providerSubscriptionID, payload)
		if errors.Is(err, ErrUserNotResolved) {
			log.WarnContext(ctx, "ignoring billing event for unknown user",
				slog.String("customer_id", payload.CustomerID),
			)
			return nil
		}
		if err != nil {
			return errors.Join(ErrFailedToApplyEvent, err)
		}
	case store.IsNotFound(err):
		log.InfoContext(ctx, "ignoring billing event for unknown subscription")
		return nil
	default:
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	from := sub.Status
	to, err := machine.Fire(ctx, from, event, &payload)
	if err != nil {
		if statemachine.IsNoTransition(err) || statemachine.IsRejected(err) {
			log.InfoContext(ctx, "billing event does not apply to subscription status",
				slog.String("status", string(from)),
			)
			return nil
		}
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	now := m.now().UTC()
	sub.Status = to
	if err := m.applyPayload(ctx, sub, event, payload, now); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}
	sub.UpdatedAt = now

	if err := m.store.Save(ctx, sub); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	log.InfoContext(ctx, "billing event applied",
		logger.UserID(sub.UserID),
		logger.PlanID(sub.PlanID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)

	if plansTouching[event] {
		if _, err := m.syncUserPlan(ctx, sub, now); err != nil {
			return errors.Join(ErrFailedToApplyEvent, err)
		}
	}
	return nil
}

func (m *Manager) newSubscription(ctx context.Context, providerSubscriptionID string, p Payload) (*Subscription, error) {
	userID := p.UserID
	if userID == uuid.Nil {
		if p.CustomerID == "" {
			return nil, ErrUserNotResolved
		}
		u, err := m.users.GetUserByCustomerID(ctx, p.CustomerID)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, errors.Join(ErrUserNotResolved, err)
			}
			return nil, err
		}
		userID = u.ID
	}

	now := m.now().UTC()
	return &Subscription{
		ID:                     uuid.New(),
		UserID:                 userID,
		ProviderSubscriptionID: providerSubscriptionID,
		Status:                 StatusNone,
		BillingInterval:        plans.IntervalMonthly,
		CreatedAt:              now,
	}, nil
}

func (m *Manager) applyPayload(ctx context.Context, sub *Subscription, event EventName, p Payload, now time.Time) error {
	if p.RenewAt != nil {
		sub.RenewAt = p.RenewAt
	}
	if p.Interval.Valid() && p.Interval != plans.IntervalNone {
		sub.BillingInterval = p.Interval
	}

	switch event {
	case EventUpdated, EventResumed:
		sub.CancelAt = p.CancelAt
	case EventCancelled, EventExpired:
		sub.CancelAt = p.CancelAt
		if sub.CancelAt == nil {
			sub.CancelAt = &now
		}
	default:
		if p.CancelAt != nil {
			sub.CancelAt = p.CancelAt
		}
	}

	if event != EventCreated && event != EventUpdated {
		return nil
	}

	if p.CustomerID != "" {
		sub.ProviderCustomerID = p.CustomerID
		if err := m.linkCustomer(ctx, sub.UserID, p.CustomerID); err != nil {
			return err
		}
	}

	if p.PriceID == "" {
		if sub.PlanID == "" {
			return fmt.Errorf("%w: event carries no price", plans.ErrUnknownPrice)
		}
		return nil
	}

	plan, err := m.catalog.PlanForPrice(p.PriceID)
	if err != nil {
		if event == EventCreated && sub.PlanID == "" {
			return err
		}
		m.log.WarnContext(ctx, "billing event carries unmapped price, keeping plan",
			logger.SubscriptionID(sub.ProviderSubscriptionID),
			slog.String("price_id", p.PriceID),
		)
		return nil
	}
	sub.PlanID = plan.ID
	if plan.Interval != plans.IntervalNone && !p.Interval.Valid() {
		sub.BillingInterval = plan.Interval
	}
	return nil
}

func (m *Manager) linkCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	u, err := m.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.BillingCustomerID == customerID {
		return nil
	}
	return m.users.SetBillingCustomerID(ctx, userID, customerID)
}

// ImpliedPlan returns the plan a subscription grants at now under the
// configured policy.
func (m *Manager) ImpliedPlan(sub *Subscription, now time.Time) string {
	free := m.catalog.FreePlan().ID
	switch {
	case sub == nil || sub.PlanID == "":
		return free
	case !sub.Status.IsEnded():
		return sub.PlanID
	case m.policy == DowngradeAtCancelAt && sub.CancelPending(now):
		return sub.PlanID
	default:
		return free
	}
}

// syncUserPlan writes the plan implied by sub to the user and reports whether
// it changed.
func (m *Manager) syncUserPlan(ctx context.Context, sub *Subscription, now time.Time) (bool, error) {
	if sub.Status.IsEnded() {
		// an older subscription ending must not downgrade a newer one
		current, err := m.store.GetCurrentForUser(ctx, sub.UserID)
		if err != nil && !store.IsNotFound(err) {
			return false, err
		}
		if current != nil && current.ProviderSubscriptionID != sub.ProviderSubscriptionID && current.Status.IsCurrent() {
			return false, nil
		}
	}

	target := m.ImpliedPlan(sub, now)
	u, err := m.users.GetUser(ctx, sub.UserID)
	if err != nil {
		return false, err
	}
	if u.CurrentPlan == target {
		return false, nil
	}
	if err := m.users.SetCurrentPlan(ctx, sub.UserID, target); err != nil {
		return false, err
	}

	m.log.InfoContext(ctx, "user plan changed",
		logger.UserID(sub.UserID),
		slog.String("from_plan", u.CurrentPlan),
		slog.String("to_plan", target),
	)
	m.notifyPlanChanged(ctx, sub.UserID, u.CurrentPlan, target)
	return true, nil
}

func (m *Manager) notifyPlanChanged(ctx context.Context, userID uuid.UUID, from, to string) {
	if m.notifier == nil {
		return
	}

	name := to
	if p, err := m.catalog.PlanFor(to); err == nil && p.Name != "" {
		name = p.Name
	}
	n := notifications.Notification{
		UserID:  userID,
		Kind:    notifications.KindPlanChanged,
		Type:    notifications.TypeInfo,
		Title:   "Plan updated",
		Message: fmt.Sprintf("You are now on the %s plan.", name),
		Data:    map[string]any{"from_plan": from, "to_plan": to},
	}
	if err := m.notifier.Send(ctx, n); err != nil {
		m.log.WarnContext(ctx, "failed to send plan change notification",
			logger.UserID(userID),
			logger.Error(err),
		)
	}
}

// ReconcileResult summarizes one Reconcile pass.
type ReconcileResult struct {
	Checked    int
	Downgraded int
	Failed     int
}

// Reconcile re-derives the cached plan of every user whose subscription ended
// at or before now. Under DowngradeAtCancelAt this is what applies deferred
// downgrades; under DowngradeImmediately it repairs missed updates.
func (m *Manager) Reconcile(ctx context.Context) (ReconcileResult, error) {
	now := m.now().UTC()
	ended, err := m.store.ListCanceledBefore(ctx, now)
	if err != nil {
		return ReconcileResult{}, errors.Join(ErrFailedToReconcile, err)
	}

	var res ReconcileResult
	for _, sub := range ended {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++

		changed, err := m.reconcileOne(ctx, sub.ProviderSubscriptionID, now)
		if err != nil {
			res.Failed++
			m.log.WarnContext(ctx, "subscription reconcile failed",
				logger.SubscriptionID(sub.ProviderSubscriptionID),
				logger.Error(err),
			)
			continue
		}
		if changed {
			res.Downgraded++
		}
	}
	return res, nil
}

func (m *Manager) reconcileOne(ctx context.Context, providerSubscriptionID string, now time.Time) (bool, error) {
	unlock, err := m.locker.Lock(ctx, providerSubscriptionID)
	if err != nil {
		return false, errors.Join(ErrFailedToAcquireLock, store.Unavailable(err))
	}
	defer unlock()

	sub, err := m.store.GetByProviderID(ctx, providerSubscriptionID)
	if err != nil {
		return false, err
	}
	return m.syncUserPlan(ctx, sub, now)
}
