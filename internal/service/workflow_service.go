package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/dto"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
	appErrors "github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/errors"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/export"
)

type progressStore interface {
	GetByStudent(ctx context.Context, studentID string) (*models.WorkflowProgress, error)
	Create(ctx context.Context, progress *models.WorkflowProgress) error
	AdvanceStage(ctx context.Context, studentID string, from, to models.Stage, now time.Time) (bool, error)
	UpdateSemester(ctx context.Context, studentID string, semester int, academicYear string, now time.Time) (bool, error)
	ListRequiringAttention(ctx context.Context, cutoff, now time.Time) ([]models.StudentAttention, error)
	StageAnalytics(ctx context.Context, now time.Time) ([]models.StageAnalytics, error)
}

type approvalChecker interface {
	HasApproved(ctx context.Context, studentID, formCode string) (bool, error)
}

type examReader interface {
	LatestComprehensiveResult(ctx context.Context, studentID string) (*models.ComprehensiveExam, error)
	LatestDefense(ctx context.Context, studentID string, defenseType models.DefenseType) (*models.DefenseRecord, error)
	PassedDefenseTypes(ctx context.Context, studentID string) ([]models.DefenseType, error)
}

// WorkflowConfig tunes the stage advancement engine.
type WorkflowConfig struct {
	AttentionThresholdDays int
	StatusCacheTTL         time.Duration
	AnalyticsCacheTTL      time.Duration
}

// WorkflowService is the stage advancement engine: it reports per-student
// progress, gates transitions on approved forms and examination outcomes, and
// commits advancement atomically.
type WorkflowService struct {
	catalog     *StageCatalog
	progress    progressStore
	submissions approvalChecker
	exams       examReader
	cache       *CacheService
	notifier    notificationDispatcher
	audit       auditLogger
	metrics     *MetricsService
	cfg         WorkflowConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(
	catalog *StageCatalog,
	progress progressStore,
	submissions approvalChecker,
	exams examReader,
	cache *CacheService,
	notifier notificationDispatcher,
	audit auditLogger,
	metrics *MetricsService,
	cfg WorkflowConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AttentionThresholdDays <= 0 {
		cfg.AttentionThresholdDays = 90
	}
	return &WorkflowService{
		catalog:     catalog,
		progress:    progress,
		submissions: submissions,
		exams:       exams,
		cache:       cache,
		notifier:    notifier,
		audit:       audit,
		metrics:     metrics,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
	}
}

func statusCacheKey(studentID string) string {
	return "workflow:status:" + studentID
}

const analyticsCacheKey = "workflow:analytics"

// Status returns the student's stage progress and advancement readiness.
// Students may only view their own status; staff roles may view any student.
func (s *WorkflowService) Status(ctx context.Context, claims *models.JWTClaims, studentID string) (*dto.WorkflowStatusResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if studentID == "" {
		studentID = claims.UserID
	}
	if claims.Role == models.RoleStudent && studentID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own progress")
	}

	var cached dto.WorkflowStatusResponse
	if hit, _ := s.cache.Get(ctx, statusCacheKey(studentID), &cached); hit {
		return &cached, nil
	}

	progress, err := s.resolveProgress(ctx, studentID)
	if err != nil {
		return nil, err
	}

	response := &dto.WorkflowStatusResponse{Progress: progress}
	for _, code := range s.catalog.RequiredForms(progress.CurrentStage) {
		approved, err := s.submissions.HasApproved(ctx, studentID, code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check form approvals")
		}
		response.RequiredForms = append(response.RequiredForms, dto.FormRequirement{Code: code, Approved: approved})
	}

	if !s.catalog.IsTerminal(progress.CurrentStage) {
		blocking, err := s.blockingRequirements(ctx, studentID, progress.CurrentStage)
		if err != nil {
			return nil, err
		}
		response.CanAdvance = len(blocking) == 0
		response.Blocking = blocking
	}

	if err := s.cache.Set(ctx, statusCacheKey(studentID), response, s.cfg.StatusCacheTTL); err != nil {
		s.logger.Warn("failed to cache workflow status", zap.String("student_id", studentID), zap.Error(err))
	}
	return response, nil
}

// Advance moves the student to the next stage once every gate of the current
// stage is satisfied. Admins may advance any student; students only
// themselves. The commit is conditional on the stage the caller observed, so
// concurrent requests advance at most once.
func (s *WorkflowService) Advance(ctx context.Context, claims *models.JWTClaims, req dto.AdvanceRequest) (*dto.AdvanceResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	studentID := req.StudentID
	if studentID == "" {
		studentID = claims.UserID
	}
	switch claims.Role {
	case models.RoleAdmin, models.RoleSuperAdmin:
	case models.RoleStudent:
		if studentID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only advance themselves")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not advance students")
	}

	progress, err := s.resolveProgress(ctx, studentID)
	if err != nil {
		return nil, err
	}

	current := progress.CurrentStage
	if !s.catalog.Contains(current) {
		return nil, appErrors.Clone(appErrors.ErrInvalidStage, fmt.Sprintf("unknown stage %s", current))
	}
	next, ok := s.catalog.Next(current)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidStage, fmt.Sprintf("stage %s is terminal", current))
	}

	blocking, err := s.blockingRequirements(ctx, studentID, current)
	if err != nil {
		return nil, err
	}
	if len(blocking) > 0 {
		return nil, appErrors.AdvancementBlocked(blocking)
	}

	now := time.Now().UTC()
	advanced, err := s.progress.AdvanceStage(ctx, studentID, current, next, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance stage")
	}
	if !advanced {
		return nil, appErrors.Clone(appErrors.ErrConflict, "stage changed concurrently; re-read status and retry")
	}

	requiredForms := s.catalog.RequiredForms(next)
	s.notifier.Dispatch(ctx, []models.Notification{advanceEvent(studentID, next, requiredForms)})
	if claims.Role == models.RoleAdmin || claims.Role == models.RoleSuperAdmin {
		s.emitAudit(ctx, claims, models.AuditActionStageAdvance, studentID, map[string]interface{}{
			"from": current,
			"to":   next,
		})
	}
	s.metrics.RecordAdvancement(next)
	s.invalidateCaches(ctx, studentID)

	return &dto.AdvanceResponse{
		StudentID:     studentID,
		PreviousStage: current,
		CurrentStage:  next,
		RequiredForms: requiredForms,
		AdvancedAt:    now,
	}, nil
}

// UpdateSemester sets the semester counters on a student's progress row.
func (s *WorkflowService) UpdateSemester(ctx context.Context, claims *models.JWTClaims, req dto.UpdateSemesterRequest) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators may update semesters")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}

	ok, err := s.progress.UpdateSemester(ctx, req.StudentID, req.Semester, req.AcademicYear, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update semester")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "no workflow progress for student")
	}

	s.emitAudit(ctx, claims, models.AuditActionSemesterUpdate, req.StudentID, map[string]interface{}{
		"semester":      req.Semester,
		"academic_year": req.AcademicYear,
	})
	s.invalidateCaches(ctx, req.StudentID)
	return nil
}

// Analytics aggregates the per-stage student distribution, cached briefly.
func (s *WorkflowService) Analytics(ctx context.Context, claims *models.JWTClaims) (*dto.WorkflowAnalyticsResponse, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}

	var cached dto.WorkflowAnalyticsResponse
	if hit, _ := s.cache.Get(ctx, analyticsCacheKey, &cached); hit {
		return &cached, nil
	}

	now := time.Now().UTC()
	stages, err := s.progress.StageAnalytics(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate analytics")
	}
	sort.Slice(stages, func(i, j int) bool {
		oi, _ := s.catalog.Ordinal(stages[i].Stage)
		oj, _ := s.catalog.Ordinal(stages[j].Stage)
		return oi < oj
	})

	response := &dto.WorkflowAnalyticsResponse{Stages: stages, GeneratedAt: now}
	if err := s.cache.Set(ctx, analyticsCacheKey, response, s.cfg.AnalyticsCacheTTL); err != nil {
		s.logger.Warn("failed to cache analytics", zap.Error(err))
	}
	return response, nil
}

// StudentsRequiringAttention lists active students stuck past the threshold,
// longest-lingering first.
func (s *WorkflowService) StudentsRequiringAttention(ctx context.Context, claims *models.JWTClaims, thresholdDays int) ([]models.StudentAttention, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	if thresholdDays <= 0 {
		thresholdDays = s.cfg.AttentionThresholdDays
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -thresholdDays)
	students, err := s.progress.ListRequiringAttention(ctx, cutoff, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students requiring attention")
	}
	return students, nil
}

// ExportReport renders the attention list as CSV or PDF bytes.
func (s *WorkflowService) ExportReport(ctx context.Context, claims *models.JWTClaims, format string, thresholdDays int) ([]byte, string, error) {
	students, err := s.StudentsRequiringAttention(ctx, claims, thresholdDays)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Email", "Stage", "Days In Stage"},
	}
	for _, student := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":       student.FullName,
			"Email":         student.Email,
			"Stage":         string(student.CurrentStage),
			"Days In Stage": strconv.Itoa(student.DaysInStage),
		})
	}

	switch format {
	case "csv", "":
		payload, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := export.NewPDFExporter().Render(dataset, "Students Requiring Attention")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
	}
}

// resolveProgress returns the student's progress row, creating it at the first
// catalog stage on first touch. Creation is idempotent under races.
func (s *WorkflowService) resolveProgress(ctx context.Context, studentID string) (*models.WorkflowProgress, error) {
	progress, err := s.progress.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow progress")
	}
	if progress != nil {
		return progress, nil
	}

	fresh := &models.WorkflowProgress{
		StudentID:    studentID,
		CurrentStage: s.catalog.First(),
		Semester:     1,
	}
	if err := s.progress.Create(ctx, fresh); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to initialise workflow progress")
	}

	progress, err = s.progress.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload workflow progress")
	}
	if progress == nil {
		return fresh, nil
	}
	return progress, nil
}

// blockingRequirements returns the unsatisfied gates for leaving the given
// stage: every required form approved, plus the stage's examination outcomes.
func (s *WorkflowService) blockingRequirements(ctx context.Context, studentID string, stage models.Stage) ([]string, error) {
	blocking := []string{}
	for _, code := range s.catalog.RequiredForms(stage) {
		approved, err := s.submissions.HasApproved(ctx, studentID, code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check form approvals")
		}
		if !approved {
			blocking = append(blocking, fmt.Sprintf("form %s not approved", code))
		}
	}

	switch stage {
	case models.StageComprehensiveExam:
		exam, err := s.exams.LatestComprehensiveResult(ctx, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check exam result")
		}
		if exam == nil || exam.OverallResult != models.ExamPass {
			blocking = append(blocking, "comprehensive exam not passed")
		}
	case models.StageSynopsisDefense:
		defense, err := s.exams.LatestDefense(ctx, studentID, models.DefenseSynopsis)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check defense result")
		}
		if defense == nil || defense.OverallResult != models.ExamPass {
			blocking = append(blocking, "synopsis defense not passed")
		}
	case models.StageThesisDefense:
		passed, err := s.exams.PassedDefenseTypes(ctx, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check defense results")
		}
		seen := make(map[models.DefenseType]bool, len(passed))
		for _, t := range passed {
			seen[t] = true
		}
		if !seen[models.DefenseInHouse] {
			blocking = append(blocking, "in-house defense not passed")
		}
		if !seen[models.DefensePublic] {
			blocking = append(blocking, "public defense not passed")
		}
	}
	return blocking, nil
}

func (s *WorkflowService) invalidateCaches(ctx context.Context, studentID string) {
	if err := s.cache.Invalidate(ctx, statusCacheKey(studentID)); err != nil {
		s.logger.Warn("failed to invalidate status cache", zap.String("student_id", studentID), zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, analyticsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate analytics cache", zap.Error(err))
	}
}

func (s *WorkflowService) emitAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	newValues, _ := json.Marshal(values)
	log := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "workflow_progress",
		ResourceID: &resourceID,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "workflow-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record workflow audit", zap.Error(err))
	}
}

func requireStaff(claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleAdmin, models.RoleSuperAdmin, models.RoleSupervisor, models.RoleGEC:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "staff role required")
	}
}

func advanceEvent(studentID string, stage models.Stage, requiredForms []string) models.Notification {
	message := fmt.Sprintf("You have advanced to stage %s.", stage)
	if len(requiredForms) > 0 {
		message = fmt.Sprintf("You have advanced to stage %s. Forms required in this stage: %v.", stage, requiredForms)
	}
	return models.Notification{
		RecipientID:    studentID,
		Title:          fmt.Sprintf("Stage advanced: %s", stage),
		Message:        message,
		Severity:       models.SeveritySuccess,
		ActionRequired: len(requiredForms) > 0,
	}
}
