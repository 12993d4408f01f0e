package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/tracker/internal/model"
)

const notificationColumns = "id, recipient_id, task_id, type, title, message, read, read_at, created_at"

// CreateNotifications inserts a batch of notifications in one transaction.
func (s *SQLiteStore) CreateNotifications(ctx context.Context, ns []model.Notification) error {
	if len(ns) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO notifications (`+notificationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing notification insert: %w", err)
		}
		defer stmt.Close()

		for i := range ns {
			n := &ns[i]
			if n.ID == "" {
				n.ID = uuid.New().String()
			}
			if n.CreatedAt.IsZero() {
				n.CreatedAt = time.Now().UTC()
			}
			_, err := stmt.ExecContext(ctx,
				n.ID, n.RecipientID, n.TaskID, string(n.Type), n.Title, n.Message,
				boolToInt(n.Read), n.ReadAt, n.CreatedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("creating notification for %s: %w", n.RecipientID, err)
			}
		}
		return nil
	})
}

// GetNotification retrieves a single notification by ID.
func (s *SQLiteStore) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	err := s.db.GetContext(ctx, &n,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "notification", id)
	}
	return &n, nil
}

// GetUnreadNotifications retrieves up to limit unread notifications for
// userID, most recent first.
func (s *SQLiteStore) GetUnreadNotifications(
	ctx context.Context,
	userID string,
	limit int,
) ([]model.Notification, error) {
	if limit <= 0 {
		return nil, nil
	}

	var ns []model.Notification
	err := s.db.SelectContext(ctx, &ns, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE recipient_id = ? AND read = 0
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying unread notifications for %s: %w", userID, err)
	}
	return ns, nil
}

// MarkNotificationsRead marks the given notifications as read when they
// belong to userID. IDs owned by someone else or already read are left
// untouched; read_at keeps its first value. Returns the number of
// notifications that transitioned.
func (s *SQLiteStore) MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`
		UPDATE notifications SET read = 1, read_at = COALESCE(read_at, ?)
		WHERE recipient_id = ? AND read = 0 AND id IN (?)`,
		time.Now().UTC(), userID, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("building mark-read query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read for %s: %w", userID, err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
