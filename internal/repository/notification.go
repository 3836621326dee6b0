package repository

import (
	"context"
	"fmt"

	"lovechat-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// NotificationRepository handles database operations for notifications
type NotificationRepository struct {
	db DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, to_id, from_id, kind, content, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, n.ID, n.ToID, n.FromID, string(n.Kind), n.Content, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByRecipient returns the newest notifications of an account
func (r *NotificationRepository) ListByRecipient(ctx context.Context, toID string, limit int) ([]*models.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, to_id, from_id, kind, content, read, created_at
		FROM notifications WHERE to_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, toID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	notifications, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Notification, error) {
		var n models.Notification
		var kind string
		err := row.Scan(&n.ID, &n.ToID, &n.FromID, &kind, &n.Content, &n.Read, &n.CreatedAt)
		n.Kind = models.NotificationKind(kind)
		return &n, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan notifications: %w", err)
	}
	return notifications, nil
}

// MarkAllRead flags every unread notification of an account as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, toID string) (int64, error) {
	result, err := r.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE to_id = $1 AND NOT read`, toID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected(), nil
}
