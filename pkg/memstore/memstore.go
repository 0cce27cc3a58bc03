// Package memstore is an in-memory implementation of every engine store. It
// enforces the same atomicity rules as the Postgres store and is used for tests
// and single-process deployments.
package memstore

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
	"github.com/Prat011/free-cluely-sub000/pkg/store"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

var (
	_ account.Store      = (*Store)(nil)
	_ meeting.Store      = (*Store)(nil)
	_ usage.Reader       = (*Store)(nil)
	_ usage.Recorder     = (*Store)(nil)
	_ subscription.Store = (*Store)(nil)
)

// Store keeps all records in maps guarded by one mutex, which makes every
// operation atomic.
type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]account.User
	meetings      map[uuid.UUID]meeting.Meeting
	openByUser    map[uuid.UUID]uuid.UUID
	aiUsage       []usage.AIUsageRecord
	subscriptions map[string]subscription.Subscription
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		users:         make(map[uuid.UUID]account.User),
		meetings:      make(map[uuid.UUID]meeting.Meeting),
		openByUser:    make(map[uuid.UUID]uuid.UUID),
		subscriptions: make(map[string]subscription.Subscription),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u account.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
}

func userNotFound() error {
	return errors.Join(account.ErrUserNotFound, store.ErrNotFound)
}

// GetUser implements account.Store.
func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, userNotFound()
	}
	return &u, nil
}

// GetUserByCustomerID implements account.Store.
func (s *Store) GetUserByCustomerID(_ context.Context, customerID string) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if customerID != "" && u.BillingCustomerID == customerID {
			return &u, nil
		}
	}
	return nil, userNotFound()
}

func (s *Store) updateUser(id uuid.UUID, fn func(*account.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return userNotFound()
	}
	fn(&u)
	u.UpdatedAt = s.now().UTC()
	s.users[id] = u
	return nil
}

// SetCurrentPlan implements account.Store.
func (s *Store) SetCurrentPlan(_ context.Context, id uuid.UUID, planID string) error {
	return s.updateUser(id, func(u *account.User) { u.CurrentPlan = planID })
}

// SetBillingCustomerID implements account.Store.
func (s *Store) SetBillingCustomerID(_ context.Context, id uuid.UUID, customerID string) error {
	return s.updateUser(id, func(u *account.User) { u.BillingCustomerID = customerID })
}

// MarkFreeTrialStarted implements account.Store.
func (s *Store) MarkFreeTrialStarted(_ context.Context, id uuid.UUID, at time.Time) error {
	return s.updateUser(id, func(u *account.User) {
		t := at.UTC()
		u.LastFreeTrialStartedAt = &t
	})
}

func meetingNotFound() error {
	return errors.Join(meeting.ErrMeetingNotFound, store.ErrNotFound)
}

func cloneMeeting(m meeting.Meeting) *meeting.Meeting {
	c := m
	c.EndedAt = clonePtr(m.EndedAt)
	c.DurationMinutes = clonePtr(m.DurationMinutes)
	c.WarnedFiveAt = clonePtr(m.WarnedFiveAt)
	c.WarnedOneAt = clonePtr(m.WarnedOneAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CreateOpenMeeting implements meeting.Store. The open meeting check and the
// insert happen under one lock.
func (s *Store) CreateOpenMeeting(_ context.Context, m *meeting.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, open := s.openByUser[m.UserID]; open {
		return store.ErrConflict
	}
	if _, exists := s.meetings[m.ID]; exists {
		return store.ErrConflict
	}
	s.meetings[m.ID] = *cloneMeeting(*m)
	if m.EndedAt == nil {
		s.openByUser[m.UserID] = m.ID
	}
	return nil
}

// GetMeeting implements meeting.Store.
func (s *Store) GetMeeting(_ context.Context, id uuid.UUID) (*meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, meetingNotFound()
	}
	return cloneMeeting(m), nil
}

// GetOpenMeeting implements meeting.Store.
func (s *Store) GetOpenMeeting(_ context.Context, userID uuid.UUID) (*meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.openByUser[userID]
	if !ok {
		return nil, meetingNotFound()
	}
	return cloneMeeting(s.meetings[id]), nil
}

// CloseMeeting implements meeting.Store.
func (s *Store) CloseMeeting(_ context.Context, id uuid.UUID, endedAt time.Time, durationMinutes int64, reason meeting.EndReason) (*meeting.Meeting, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, false, meetingNotFound()
	}
	if m.EndedAt != nil {
		return cloneMeeting(m), false, nil
	}
	ended := endedAt.UTC()
	m.EndedAt = &ended
	m.DurationMinutes = &durationMinutes
	m.EndReason = reason
	s.meetings[id] = m
	delete(s.openByUser, m.UserID)
	return cloneMeeting(m), true, nil
}

// ListOpenMeetings implements meeting.Store, oldest first.
func (s *Store) ListOpenMeetings(_ context.Context) ([]meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]meeting.Meeting, 0, len(s.openByUser))
	for _, id := range s.openByUser {
		out = append(out, *cloneMeeting(s.meetings[id]))
	}
	slices.SortFunc(out, func(a, b meeting.Meeting) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out, nil
}

// MarkWarningSent implements meeting.Store. Warnings on closed meetings are
// never marked.
func (s *Store) MarkWarningSent(_ context.Context, id uuid.UUID, w meeting.Warning, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return false, meetingNotFound()
	}
	if m.EndedAt != nil || m.WarningSent(w) {
		return false, nil
	}
	t := at.UTC()
	switch w {
	case meeting.WarningFiveMinutes:
		m.WarnedFiveAt = &t
	case meeting.WarningOneMinute:
		m.WarnedOneAt = &t
	default:
		return false, nil
	}
	s.meetings[id] = m
	return true, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// SumMeetingMinutes implements usage.Reader.
func (s *Store) SumMeetingMinutes(_ context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, m := range s.meetings {
		if m.UserID != userID || m.EndedAt == nil || m.DurationMinutes == nil {
			continue
		}
		if inRange(*m.EndedAt, from, to) {
			total += *m.DurationMinutes
		}
	}
	return total, nil
}

// CountMeetingsStarted implements usage.Reader.
func (s *Store) CountMeetingsStarted(_ context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, m := range s.meetings {
		if m.UserID == userID && inRange(m.StartedAt, from, to) {
			n++
		}
	}
	return n, nil
}

// SumAICost implements usage.Reader.
func (s *Store) SumAICost(_ context.Context, userID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, rec := range s.aiUsage {
		if rec.UserID == userID && inRange(rec.CreatedAt, from, to) {
			total = total.Add(rec.CostUSD)
		}
	}
	return total, nil
}

// InsertAIUsage implements usage.Recorder.
func (s *Store) InsertAIUsage(_ context.Context, rec *usage.AIUsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.aiUsage {
		if existing.ID == rec.ID {
			return store.ErrConflict
		}
	}
	s.aiUsage = append(s.aiUsage, *rec)
	return nil
}

func subscriptionNotFound() error {
	return errors.Join(subscription.ErrSubscriptionNotFound, store.ErrNotFound)
}

func cloneSubscription(sub subscription.Subscription) *subscription.Subscription {
	c := sub
	c.RenewAt = clonePtr(sub.RenewAt)
	c.CancelAt = clonePtr(sub.CancelAt)
	return &c
}

// GetByProviderID implements subscription.Store.
func (s *Store) GetByProviderID(_ context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[providerSubscriptionID]
	if !ok {
		return nil, subscriptionNotFound()
	}
	return cloneSubscription(sub), nil
}

// GetCurrentForUser implements subscription.Store.
func (s *Store) GetCurrentForUser(_ context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID != userID {
			continue
		}
		if best == nil || preferSubscription(sub, *best) {
			best = cloneSubscription(sub)
		}
	}
	if best == nil {
		return nil, subscriptionNotFound()
	}
	return best, nil
}

// preferSubscription orders current statuses first, then most recently updated.
func preferSubscription(a, b subscription.Subscription) bool {
	if a.Status.IsCurrent() != b.Status.IsCurrent() {
		return a.Status.IsCurrent()
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

// Save implements subscription.Store.
func (s *Store) Save(_ context.Context, sub *subscription.Subscription) error {
	if sub.ProviderSubscriptionID == "" {
		return subscription.ErrMissingSubscriptionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subscriptions[sub.ProviderSubscriptionID]; ok && existing.ID != sub.ID {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	}
	s.subscriptions[sub.ProviderSubscriptionID] = *cloneSubscription(*sub)
	return nil
}

// ListCanceledBefore implements subscription.Store.
func (s *Store) ListCanceledBefore(_ context.Context, t time.Time) ([]subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.Status.IsEnded() && sub.CancelAt != nil && !sub.CancelAt.After(t) {
			out = append(out, *cloneSubscription(sub))
		}
	}
	slices.SortFunc(out, func(a, b subscription.Subscription) int {
		return a.CancelAt.Compare(*b.CancelAt)
	})
	return out, nil
}
