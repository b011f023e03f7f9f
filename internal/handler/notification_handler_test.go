package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/service"
)

type fakeNotificationStore struct {
	list     []models.Notification
	total    int
	unread   int
	markedOK bool
	lastPage int
	lastSize int
}

func (f *fakeNotificationStore) Create(context.Context, *models.Notification) error { return nil }

func (f *fakeNotificationStore) ExistsSimilarSince(context.Context, string, string, time.Time) (bool, error) {
	return false, nil
}

func (f *fakeNotificationStore) ListByRecipient(_ context.Context, _ string, _ bool, page, pageSize int) ([]models.Notification, int, error) {
	f.lastPage = page
	f.lastSize = pageSize
	return f.list, f.total, nil
}

func (f *fakeNotificationStore) CountUnread(context.Context, string) (int, error) {
	return f.unread, nil
}

func (f *fakeNotificationStore) MarkRead(context.Context, string, string) (bool, error) {
	return f.markedOK, nil
}

type fakeAttentionLister struct{}

func (fakeAttentionLister) ListRequiringAttention(context.Context, time.Time, time.Time) ([]models.StudentAttention, error) {
	return nil, nil
}

func newNotificationTestHandler(store *fakeNotificationStore) *NotificationHandler {
	svc := service.NewNotificationService(store, fakeAttentionLister{}, service.ReminderConfig{}, nil)
	return NewNotificationHandler(svc)
}

func TestNotificationHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeNotificationStore{
		list:  []models.Notification{{ID: "n-1", Title: "Decision recorded"}},
		total: 11,
	}
	handler := newNotificationTestHandler(store)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/notifications?page=2&page_size=5", nil)
	withClaims(c, models.RoleStudent, "stu-1")

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, store.lastPage)
	assert.Equal(t, 5, store.lastSize)
	var envelope struct {
		Data       []map[string]interface{} `json:"data"`
		Pagination map[string]interface{}   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Decision recorded", envelope.Data[0]["title"])
	assert.Equal(t, float64(11), envelope.Pagination["total_count"])
}

func TestNotificationHandlerUnreadCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newNotificationTestHandler(&fakeNotificationStore{unread: 3})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil)
	withClaims(c, models.RoleStudent, "stu-1")

	handler.UnreadCount(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, float64(3), envelope.Data["count"])
}

func TestNotificationHandlerMarkRead(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("owned notification", func(t *testing.T) {
		handler := newNotificationTestHandler(&fakeNotificationStore{markedOK: true})

		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodPost, "/notifications/n-1/read", nil)
		c.Params = gin.Params{{Key: "id", Value: "n-1"}}
		withClaims(c, models.RoleStudent, "stu-1")

		handler.MarkRead(c)
		// gin defers the status header for body-less responses; flush so the
		// recorder sees the code the server would actually send.
		c.Writer.WriteHeaderNow()

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("unknown or foreign notification", func(t *testing.T) {
		handler := newNotificationTestHandler(&fakeNotificationStore{markedOK: false})

		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodPost, "/notifications/n-404/read", nil)
		c.Params = gin.Params{{Key: "id", Value: "n-404"}}
		withClaims(c, models.RoleStudent, "stu-1")

		handler.MarkRead(c)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
