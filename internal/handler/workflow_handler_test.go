package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/middleware"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/service"
)

type fakeProgressStore struct {
	progress  *models.WorkflowProgress
	advanceOK bool
	attention []models.StudentAttention
}

func (f *fakeProgressStore) GetByStudent(context.Context, string) (*models.WorkflowProgress, error) {
	if f.progress == nil {
		return nil, nil
	}
	copied := *f.progress
	return &copied, nil
}

func (f *fakeProgressStore) Create(_ context.Context, progress *models.WorkflowProgress) error {
	progress.ID = "wp-1"
	progress.StageStartDate = time.Now().UTC()
	f.progress = progress
	return nil
}

func (f *fakeProgressStore) AdvanceStage(_ context.Context, _ string, _, to models.Stage, _ time.Time) (bool, error) {
	if f.advanceOK && f.progress != nil {
		f.progress.CurrentStage = to
	}
	return f.advanceOK, nil
}

func (f *fakeProgressStore) UpdateSemester(context.Context, string, int, string, time.Time) (bool, error) {
	return true, nil
}

func (f *fakeProgressStore) ListRequiringAttention(context.Context, time.Time, time.Time) ([]models.StudentAttention, error) {
	return f.attention, nil
}

func (f *fakeProgressStore) StageAnalytics(context.Context, time.Time) ([]models.StageAnalytics, error) {
	return nil, nil
}

type fakeApprovals struct {
	approved map[string]bool
}

func (f *fakeApprovals) HasApproved(_ context.Context, _, formCode string) (bool, error) {
	return f.approved[formCode], nil
}

type fakeExams struct{}

func (fakeExams) LatestComprehensiveResult(context.Context, string) (*models.ComprehensiveExam, error) {
	return nil, nil
}

func (fakeExams) LatestDefense(context.Context, string, models.DefenseType) (*models.DefenseRecord, error) {
	return nil, nil
}

func (fakeExams) PassedDefenseTypes(context.Context, string) ([]models.DefenseType, error) {
	return nil, nil
}

type fakeNotifier struct {
	events []models.Notification
}

func (f *fakeNotifier) Dispatch(_ context.Context, events []models.Notification) {
	f.events = append(f.events, events...)
}

type fakeAudit struct{}

func (fakeAudit) CreateAuditLog(context.Context, *models.AuditLog) error { return nil }

func newWorkflowTestHandler(t *testing.T, progress *fakeProgressStore, approvals *fakeApprovals) *WorkflowHandler {
	t.Helper()
	catalog, err := service.DefaultStageCatalog()
	require.NoError(t, err)
	cache := service.NewCacheService(nil, nil, 0, nil, false)
	svc := service.NewWorkflowService(catalog, progress, approvals, fakeExams{}, cache,
		&fakeNotifier{}, fakeAudit{}, nil, service.WorkflowConfig{}, nil, nil)
	return NewWorkflowHandler(svc)
}

func withClaims(c *gin.Context, role models.UserRole, userID string) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role, FullName: "Test User"})
}

func TestWorkflowHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newWorkflowTestHandler(t, &fakeProgressStore{}, &fakeApprovals{approved: map[string]bool{}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/workflow/status", nil)
	withClaims(c, models.RoleStudent, "stu-1")

	handler.Status(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	progress, ok := envelope.Data["progress"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "supervisor_consent", progress["current_stage"])
	assert.Equal(t, false, envelope.Data["can_advance"])
}

func TestWorkflowHandlerAdvanceEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	progress := &fakeProgressStore{advanceOK: true}
	approvals := &fakeApprovals{approved: map[string]bool{"PHDEE02-A": true}}
	handler := newWorkflowTestHandler(t, progress, approvals)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/workflow/advance", nil)
	withClaims(c, models.RoleStudent, "stu-1")

	handler.Advance(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "supervisor_consent", envelope.Data["previous_stage"])
	assert.Equal(t, "course_registration", envelope.Data["current_stage"])
}

func TestWorkflowHandlerAdvanceBlocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newWorkflowTestHandler(t, &fakeProgressStore{}, &fakeApprovals{approved: map[string]bool{}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/workflow/advance", nil)
	withClaims(c, models.RoleStudent, "stu-1")

	handler.Advance(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "ADVANCEMENT_BLOCKED", envelope.Error.Code)
	assert.Contains(t, envelope.Error.Details["blocking"], "form PHDEE02-A not approved")
}

func TestWorkflowHandlerUpdateSemesterBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newWorkflowTestHandler(t, &fakeProgressStore{}, &fakeApprovals{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/workflow/semester", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")
	withClaims(c, models.RoleAdmin, "adm-1")

	handler.UpdateSemester(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkflowHandlerExportReport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	progress := &fakeProgressStore{attention: []models.StudentAttention{
		{StudentID: "stu-1", FullName: "Ayesha Khan", Email: "ayesha@example.edu",
			CurrentStage: models.StageResearchPhase, DaysInStage: 120},
	}}
	handler := newWorkflowTestHandler(t, progress, &fakeApprovals{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/workflow/report/export?format=csv", nil)
	withClaims(c, models.RoleAdmin, "adm-1")

	handler.ExportReport(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attention-report-")
	assert.Contains(t, rec.Body.String(), "Ayesha Khan")
}

func TestWorkflowHandlerExportReportForbiddenForStudents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newWorkflowTestHandler(t, &fakeProgressStore{}, &fakeApprovals{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/workflow/report/export", nil)
	withClaims(c, models.RoleStudent, "stu-1")

	handler.ExportReport(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type errorEnvelope struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}
