package pg

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
)

// CreateNotification implements notifications.Storage.
func (s *Store) CreateNotification(ctx context.Context, n notifications.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, type, title, message, data, read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.UserID, string(n.Kind), string(n.Type), n.Title, n.Message, n.Data,
		n.Read, n.ReadAt, n.CreatedAt.UTC())
	return classify(err, nil)
}

// ListNotifications implements notifications.Storage, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, opts notifications.ListOptions) ([]notifications.Notification, error) {
	var (
		query strings.Builder
		args  = []any{userID}
	)
	query.WriteString(`SELECT id, user_id, kind, type, title, message, data, read, read_at, created_at
		FROM notifications WHERE user_id = $1`)
	if opts.OnlyUnread {
		query.WriteString(` AND NOT read`)
	}
	if len(opts.Kinds) > 0 {
		kinds := make([]string, len(opts.Kinds))
		for i, k := range opts.Kinds {
			kinds[i] = string(k)
		}
		args = append(args, kinds)
		query.WriteString(` AND kind = ANY($` + strconv.Itoa(len(args)) + `)`)
	}
	query.WriteString(` ORDER BY created_at DESC`)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query.WriteString(` OFFSET $` + strconv.Itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, classify(err, nil)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.Notification, error) {
		var (
			n         notifications.Notification
			kind, typ string
		)
		err := row.Scan(&n.ID, &n.UserID, &kind, &typ, &n.Title, &n.Message, &n.Data,
			&n.Read, &n.ReadAt, &n.CreatedAt)
		n.Kind = notifications.Kind(kind)
		n.Type = notifications.Type(typ)
		return n, err
	})
	if err != nil {
		return nil, classify(err, nil)
	}
	return out, nil
}

// MarkNotificationsRead implements notifications.Storage. Every id must belong to
// the user.
func (s *Store) MarkNotificationsRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var found int
	err := s.pool.QueryRow(ctx, `
		WITH marked AS (
			UPDATE notifications
			SET read = true, read_at = COALESCE(read_at, $3)
			WHERE user_id = $1 AND id = ANY($2)
			RETURNING id
		)
		SELECT COUNT(*) FROM marked`,
		userID, ids, s.now().UTC()).Scan(&found)
	if err != nil {
		return classify(err, nil)
	}
	if found < len(ids) {
		return notifications.ErrNotificationNotFound
	}
	return nil
}

// CountUnreadNotifications implements notifications.Storage.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&n)
	if err != nil {
		return 0, classify(err, nil)
	}
	return n, nil
}
