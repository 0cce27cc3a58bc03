package notifications

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage for development and tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[uuid.UUID][]Notification
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[uuid.UUID][]Notification)}
}

func (s *MemoryStorage) CreateNotification(_ context.Context, notif Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[notif.UserID] = append(s.items[notif.UserID], notif)
	return nil
}

func (s *MemoryStorage) ListNotifications(_ context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.items[userID]
	out := make([]Notification, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		n := stored[i]
		if opts.OnlyUnread && n.Read {
			continue
		}
		if len(opts.Kinds) > 0 && !slices.Contains(opts.Kinds, n.Kind) {
			continue
		}
		out = append(out, n)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Notification{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *MemoryStorage) MarkNotificationsRead(_ context.Context, userID uuid.UUID, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	stored := s.items[userID]
	found := 0
	for i := range stored {
		if slices.Contains(ids, stored[i].ID) {
			found++
			if !stored[i].Read {
				stored[i].Read = true
				stored[i].ReadAt = &now
			}
		}
	}
	if found < len(ids) {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *MemoryStorage) CountUnreadNotifications(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.items[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}
