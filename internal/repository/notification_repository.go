package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"landrace-threat/internal/models"
)

// NotificationRepository handles in-app notification database operations
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (recipient_id, assessment_id, type, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		n.RecipientID, n.AssessmentID, string(n.Type), n.Message, n.Read, time.Now(),
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var typ string
	if err := row.Scan(&n.ID, &n.RecipientID, &n.AssessmentID, &typ, &n.Message, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = models.NotificationType(typ)
	return &n, nil
}

// GetByID retrieves a notification
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	query := `
		SELECT id, recipient_id, assessment_id, type, message, read, created_at
		FROM notifications
		WHERE id = $1
	`

	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// ListByRecipient lists a user's notifications newest first
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error) {
	query := `
		SELECT id, recipient_id, assessment_id, type, message, read, created_at
		FROM notifications
		WHERE recipient_id = $1 AND ($2 = FALSE OR read = FALSE)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, recipientID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer closeRows(rows)

	var notifications []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}

	return notifications, rows.Err()
}

// MarkRead flags a notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return res.RowsAffected()
}
