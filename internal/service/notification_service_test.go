package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

type stubNotificationStore struct {
	created    []models.Notification
	similar    map[string]bool
	createErr  error
	byRecip    []models.Notification
	total      int
	unread     int
	markedOK   bool
	markedID   string
	markedUser string
}

func (s *stubNotificationStore) Create(_ context.Context, notification *models.Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, *notification)
	return nil
}

func (s *stubNotificationStore) ExistsSimilarSince(_ context.Context, recipientID, title string, _ time.Time) (bool, error) {
	return s.similar[recipientID+"|"+title], nil
}

func (s *stubNotificationStore) ListByRecipient(_ context.Context, _ string, _ bool, _, _ int) ([]models.Notification, int, error) {
	return s.byRecip, s.total, nil
}

func (s *stubNotificationStore) CountUnread(context.Context, string) (int, error) {
	return s.unread, nil
}

func (s *stubNotificationStore) MarkRead(_ context.Context, id, recipientID string) (bool, error) {
	s.markedID = id
	s.markedUser = recipientID
	return s.markedOK, nil
}

type stubAttention struct {
	students []models.StudentAttention
	err      error
}

func (s *stubAttention) ListRequiringAttention(context.Context, time.Time, time.Time) ([]models.StudentAttention, error) {
	return s.students, s.err
}

func TestDispatch(t *testing.T) {
	store := &stubNotificationStore{}
	svc := NewNotificationService(store, &stubAttention{}, ReminderConfig{}, nil)

	svc.Dispatch(context.Background(), []models.Notification{
		{RecipientID: "u-1", Title: "one"},
		{RecipientID: "", Title: "skipped"},
		{RecipientID: "u-2", Title: "two"},
	})

	require.Len(t, store.created, 2)
	assert.Equal(t, "u-1", store.created[0].RecipientID)
	assert.Equal(t, "u-2", store.created[1].RecipientID)
}

func TestDispatchSwallowsErrors(t *testing.T) {
	store := &stubNotificationStore{createErr: errors.New("db down")}
	svc := NewNotificationService(store, &stubAttention{}, ReminderConfig{}, nil)

	// Must not panic or surface the failure.
	svc.Dispatch(context.Background(), []models.Notification{{RecipientID: "u-1", Title: "one"}})
	assert.Empty(t, store.created)
}

func TestRemindStaleStages(t *testing.T) {
	students := []models.StudentAttention{
		{StudentID: "stu-1", CurrentStage: models.StageResearchPhase, DaysInStage: 120},
		{StudentID: "stu-2", CurrentStage: models.StageComprehensiveExam, DaysInStage: 95},
	}

	t.Run("notifies each stale student", func(t *testing.T) {
		store := &stubNotificationStore{}
		svc := NewNotificationService(store, &stubAttention{students: students}, ReminderConfig{ThresholdDays: 90, DedupDays: 7}, nil)

		require.NoError(t, svc.RemindStaleStages(context.Background()))
		require.Len(t, store.created, 2)
		assert.Equal(t, "Reminder: still in stage research_phase", store.created[0].Title)
		assert.Equal(t, models.SeverityWarning, store.created[0].Severity)
		assert.True(t, store.created[0].ActionRequired)
	})

	t.Run("sweep is idempotent within dedup window", func(t *testing.T) {
		store := &stubNotificationStore{similar: map[string]bool{
			"stu-1|Reminder: still in stage research_phase": true,
		}}
		svc := NewNotificationService(store, &stubAttention{students: students}, ReminderConfig{ThresholdDays: 90, DedupDays: 7}, nil)

		require.NoError(t, svc.RemindStaleStages(context.Background()))
		require.Len(t, store.created, 1)
		assert.Equal(t, "stu-2", store.created[0].RecipientID)
	})

	t.Run("lister failure surfaces", func(t *testing.T) {
		svc := NewNotificationService(&stubNotificationStore{}, &stubAttention{err: errors.New("boom")}, ReminderConfig{}, nil)
		assert.Error(t, svc.RemindStaleStages(context.Background()))
	})
}

func TestNotificationQueries(t *testing.T) {
	claims := studentClaims("stu-1")

	t.Run("list with pagination", func(t *testing.T) {
		store := &stubNotificationStore{byRecip: []models.Notification{{ID: "n-1"}}, total: 11}
		svc := NewNotificationService(store, &stubAttention{}, ReminderConfig{}, nil)

		notifications, pagination, err := svc.List(context.Background(), claims, false, 2, 5)
		require.NoError(t, err)
		assert.Len(t, notifications, 1)
		require.NotNil(t, pagination)
		assert.Equal(t, 2, pagination.Page)
		assert.Equal(t, 11, pagination.TotalCount)
	})

	t.Run("unread count", func(t *testing.T) {
		store := &stubNotificationStore{unread: 3}
		svc := NewNotificationService(store, &stubAttention{}, ReminderConfig{}, nil)

		count, err := svc.UnreadCount(context.Background(), claims)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("mark read scoped to recipient", func(t *testing.T) {
		store := &stubNotificationStore{markedOK: true}
		svc := NewNotificationService(store, &stubAttention{}, ReminderConfig{}, nil)

		require.NoError(t, svc.MarkRead(context.Background(), claims, "n-1"))
		assert.Equal(t, "n-1", store.markedID)
		assert.Equal(t, "stu-1", store.markedUser)
	})

	t.Run("mark read misses are not found", func(t *testing.T) {
		store := &stubNotificationStore{markedOK: false}
		svc := NewNotificationService(store, &stubAttention{}, ReminderConfig{}, nil)
		assert.Error(t, svc.MarkRead(context.Background(), claims, "n-404"))
	})
}
