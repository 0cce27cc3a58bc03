package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotificationNotFound = errors.New("notifications: notification not found")

// Storage persists notifications so clients that missed a real-time delivery can
// fetch them later.
type Storage interface {
	CreateNotification(ctx context.Context, notif Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error)
	MarkNotificationsRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) error
	CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error)
}

// ListOptions filters and paginates listings. Results are newest first.
type ListOptions struct {
	Limit      int
	Offset     int
	OnlyUnread bool
	Kinds      []Kind
}
