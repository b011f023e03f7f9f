package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
	appErrors "github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/errors"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	ExistsSimilarSince(ctx context.Context, recipientID, title string, since time.Time) (bool, error)
	ListByRecipient(ctx context.Context, recipientID string, onlyUnread bool, page, pageSize int) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)
}

type attentionLister interface {
	ListRequiringAttention(ctx context.Context, cutoff, now time.Time) ([]models.StudentAttention, error)
}

// ReminderConfig tunes the periodic stale-stage reminder sweep.
type ReminderConfig struct {
	ThresholdDays int
	DedupDays     int
}

// NotificationService dispatches decision-boundary notifications and runs the
// reminder sweep. Dispatch is strictly best-effort: failures are logged and
// never surface to the primary operation.
type NotificationService struct {
	repo      notificationStore
	attention attentionLister
	reminder  ReminderConfig
	logger    *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationStore, attention attentionLister, reminder ReminderConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reminder.ThresholdDays <= 0 {
		reminder.ThresholdDays = 90
	}
	if reminder.DedupDays <= 0 {
		reminder.DedupDays = 7
	}
	return &NotificationService{repo: repo, attention: attention, reminder: reminder, logger: logger}
}

// Dispatch persists every event record, logging and skipping failures.
func (s *NotificationService) Dispatch(ctx context.Context, events []models.Notification) {
	for i := range events {
		if events[i].RecipientID == "" {
			continue
		}
		if err := s.repo.Create(ctx, &events[i]); err != nil {
			s.logger.Warn("notification dispatch failed",
				zap.String("recipient_id", events[i].RecipientID),
				zap.String("title", events[i].Title),
				zap.Error(err))
		}
	}
}

// RemindStaleStages notifies students who have lingered in a stage past the
// threshold. The sweep is idempotent: a student already reminded within the
// dedup window is skipped, so overlapping sweeps never double-notify.
func (s *NotificationService) RemindStaleStages(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -s.reminder.ThresholdDays)

	students, err := s.attention.ListRequiringAttention(ctx, cutoff, now)
	if err != nil {
		return fmt.Errorf("list stale stages: %w", err)
	}

	for _, student := range students {
		title := fmt.Sprintf("Reminder: still in stage %s", student.CurrentStage)
		since := now.AddDate(0, 0, -s.reminder.DedupDays)
		exists, err := s.repo.ExistsSimilarSince(ctx, student.StudentID, title, since)
		if err != nil {
			s.logger.Warn("reminder dedup check failed", zap.String("student_id", student.StudentID), zap.Error(err))
			continue
		}
		if exists {
			continue
		}

		notification := models.Notification{
			RecipientID: student.StudentID,
			Title:       title,
			Message: fmt.Sprintf("You have been in stage %s for %d days. Please complete the outstanding forms to progress.",
				student.CurrentStage, student.DaysInStage),
			Severity:       models.SeverityWarning,
			ActionRequired: true,
		}
		if err := s.repo.Create(ctx, &notification); err != nil {
			s.logger.Warn("reminder dispatch failed", zap.String("student_id", student.StudentID), zap.Error(err))
		}
	}
	return nil
}

// List returns the caller's notifications.
func (s *NotificationService) List(ctx context.Context, claims *models.JWTClaims, onlyUnread bool, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	notifications, total, err := s.repo.ListByRecipient(ctx, claims.UserID, onlyUnread, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UnreadCount returns the caller's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, claims *models.JWTClaims) (int, error) {
	if claims == nil {
		return 0, appErrors.ErrUnauthorized
	}
	count, err := s.repo.CountUnread(ctx, claims.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, claims *models.JWTClaims, id string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	ok, err := s.repo.MarkRead(ctx, id, claims.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}
