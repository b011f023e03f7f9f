package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

// NotificationRepository persists write-once notification records.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification row.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, recipient_id, title, message, severity, submission_id, action_required, read, created_at)
VALUES (:id, :recipient_id, :title, :message, :severity, :submission_id, :action_required, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ExistsSimilarSince reports whether a notification with the same recipient
// and title was created after the given time. The reminder sweep uses this as
// its idempotency guard.
func (r *NotificationRepository) ExistsSimilarSince(ctx context.Context, recipientID, title string, since time.Time) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM notifications WHERE recipient_id = $1 AND title = $2 AND created_at >= $3
)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, recipientID, title, since); err != nil {
		return false, fmt.Errorf("check similar notification: %w", err)
	}
	return exists, nil
}

// ListByRecipient returns the recipient's notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, onlyUnread bool, page, pageSize int) ([]models.Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	where := "recipient_id = $1"
	if onlyUnread {
		where += " AND read = false"
	}

	query := fmt.Sprintf(`SELECT id, recipient_id, title, message, severity, submission_id, action_required, read, created_at
FROM notifications WHERE %s
ORDER BY created_at DESC
LIMIT %d OFFSET %d`, where, pageSize, (page-1)*pageSize)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, recipientID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, recipientID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// CountUnread returns the recipient's unread notification count.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = false", recipientID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags the notification as read. Scoped to the recipient so users
// cannot touch each other's records.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE notifications SET read = true WHERE id = $1 AND recipient_id = $2", id, recipientID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification rows: %w", err)
	}
	return affected > 0, nil
}
