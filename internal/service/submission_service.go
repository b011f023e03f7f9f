package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/dto"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/repository"
	appErrors "github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/errors"
)

type formCatalogReader interface {
	FindByCode(ctx context.Context, code string) (*models.FormType, error)
	ListActive(ctx context.Context) ([]models.FormType, error)
}

type submissionStore interface {
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	LatestByStudentAndForm(ctx context.Context, studentID, formCode string) (*models.Submission, error)
	CountActive(ctx context.Context, studentID, formTypeID string) (int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error)
	ApprovedSupervisorID(ctx context.Context, studentID string) (string, error)
	RecordDecision(ctx context.Context, params repository.DecisionParams, aggregate func(*models.Submission) models.SubmissionStatus) (*models.Submission, error)
}

type draftStore interface {
	Upsert(ctx context.Context, draft *models.FormDraft) error
	Get(ctx context.Context, studentID, formCode string) (*models.FormDraft, error)
	ListCodes(ctx context.Context, studentID string) ([]string, error)
}

type approverDirectory interface {
	ListActiveByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

type notificationDispatcher interface {
	Dispatch(ctx context.Context, events []models.Notification)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SubmissionService is the submission ledger: it accepts new form
// submissions after prerequisite and quota checks, records channel decisions
// and keeps the aggregate status derived from the channel snapshot.
type SubmissionService struct {
	forms     formCatalogReader
	repo      submissionStore
	drafts    draftStore
	directory approverDirectory
	notifier  notificationDispatcher
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService constructs the service.
func NewSubmissionService(
	forms formCatalogReader,
	repo submissionStore,
	drafts draftStore,
	directory approverDirectory,
	notifier notificationDispatcher,
	audit auditLogger,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		forms:     forms,
		repo:      repo,
		drafts:    drafts,
		directory: directory,
		notifier:  notifier,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// CheckPrerequisites reports whether the student's latest submission of each
// prerequisite form is approved. An unknown form code is treated as having no
// prerequisites rather than failing.
func (s *SubmissionService) CheckPrerequisites(ctx context.Context, studentID, formCode string) (*dto.PrerequisiteResult, error) {
	form, err := s.forms.FindByCode(ctx, formCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.PrerequisiteResult{FormCode: formCode, Met: true, Missing: []string{}}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form type")
	}

	missing := make([]string, 0, len(form.Prerequisites))
	for _, code := range form.Prerequisites {
		latest, err := s.repo.LatestByStudentAndForm(ctx, studentID, code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prerequisite")
		}
		if latest == nil || latest.Status != models.SubmissionApproved {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)

	return &dto.PrerequisiteResult{FormCode: formCode, Met: len(missing) == 0, Missing: missing}, nil
}

// Submit creates a new submission for the authenticated student. Required
// channels start pending, the rest are marked not applicable, and any saved
// draft for the form is cleared in the same transaction.
func (s *SubmissionService) Submit(ctx context.Context, claims *models.JWTClaims, req dto.SubmitFormRequest) (*models.Submission, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may submit forms")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	form, err := s.forms.FindByCode(ctx, req.FormCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown form code %s", req.FormCode))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form type")
	}
	if !form.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("form %s is inactive", form.Code))
	}

	prereq, err := s.CheckPrerequisites(ctx, claims.UserID, form.Code)
	if err != nil {
		return nil, err
	}
	if !prereq.Met {
		return nil, appErrors.PrerequisitesNotMet(prereq.Missing)
	}

	if form.MaxSubmissions != nil {
		count, err := s.repo.CountActive(ctx, claims.UserID, form.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count submissions")
		}
		if count >= *form.MaxSubmissions {
			return nil, appErrors.SubmissionLimitExceeded(*form.MaxSubmissions)
		}
	}

	submission := &models.Submission{
		StudentID:        claims.UserID,
		FormTypeID:       form.ID,
		FormCode:         form.Code,
		Payload:          req.Payload,
		Status:           models.SubmissionSubmitted,
		AdminStatus:      initialChannelStatus(form.RequiresAdmin),
		SupervisorStatus: initialChannelStatus(form.RequiresSupervisor),
		GECStatus:        initialChannelStatus(form.RequiresGEC),
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	s.notifier.Dispatch(ctx, s.approverEvents(ctx, form, submission, claims))
	s.emitAudit(ctx, claims, models.AuditActionSubmissionCreate, submission.ID, map[string]interface{}{
		"form_code": form.Code,
	})
	s.metrics.RecordSubmission(form.Code)

	return submission, nil
}

// RecordDecision applies an approval-channel decision. The actor's role must
// match the channel, and the aggregate status is recomputed from the locked
// current row inside the repository transaction.
func (s *SubmissionService) RecordDecision(ctx context.Context, claims *models.JWTClaims, submissionID string, req dto.DecisionRequest) (*models.Submission, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	channel, ok := channelForRole(claims.Role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role has no approval channel")
	}

	submission, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	}

	form, err := s.forms.FindByCode(ctx, submission.FormCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form type")
	}
	if !form.Requires(channel) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("form %s does not require %s approval", form.Code, channel))
	}
	if submission.Status == models.SubmissionRejected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission is rejected; a new submission is required")
	}
	if submission.ChannelSnapshot()[channel] != models.ChannelPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s decision already recorded", channel))
	}

	if channel == models.ChannelSupervisor {
		supervisorID, err := s.repo.ApprovedSupervisorID(ctx, submission.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve supervisor")
		}
		if supervisorID != "" && supervisorID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not the student's supervisor")
		}
	}

	status := models.ChannelApproved
	if req.Action == models.ActionReject {
		status = models.ChannelRejected
	}
	var comment *string
	if req.Comment != "" {
		comment = &req.Comment
	}

	required := form.RequiredChannels()
	updated, err := s.repo.RecordDecision(ctx, repository.DecisionParams{
		SubmissionID: submissionID,
		Channel:      channel,
		Status:       status,
		ActorID:      claims.UserID,
		Comment:      comment,
		DecidedAt:    time.Now().UTC(),
	}, func(current *models.Submission) models.SubmissionStatus {
		return Aggregate(required, current.ChannelSnapshot())
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	s.notifier.Dispatch(ctx, []models.Notification{decisionEvent(updated, channel, req.Action)})
	s.emitAudit(ctx, claims, models.AuditActionDecisionRecord, submissionID, map[string]interface{}{
		"channel": channel,
		"action":  req.Action,
		"status":  updated.Status,
	})
	s.metrics.RecordDecision(channel, req.Action)

	return updated, nil
}

// SaveDraft stores in-progress form content, idempotently per student/form.
func (s *SubmissionService) SaveDraft(ctx context.Context, claims *models.JWTClaims, formCode string, req dto.SaveDraftRequest) (*models.FormDraft, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may save drafts")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft payload")
	}

	form, err := s.forms.FindByCode(ctx, formCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown form code %s", formCode))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form type")
	}
	if !form.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("form %s is inactive", form.Code))
	}

	draft := &models.FormDraft{StudentID: claims.UserID, FormCode: form.Code, Payload: req.Payload}
	if err := s.drafts.Upsert(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft")
	}
	return draft, nil
}

// GetDraft returns the student's saved draft for a form, if any.
func (s *SubmissionService) GetDraft(ctx context.Context, claims *models.JWTClaims, formCode string) (*models.FormDraft, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	draft, err := s.drafts.Get(ctx, claims.UserID, formCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	if draft == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
	}
	return draft, nil
}

// AvailableForms lists active catalog forms annotated with the student's
// latest submission status and draft presence.
func (s *SubmissionService) AvailableForms(ctx context.Context, claims *models.JWTClaims) ([]dto.AvailableForm, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	forms, err := s.forms.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list forms")
	}
	draftCodes, err := s.drafts.ListCodes(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list drafts")
	}
	drafts := make(map[string]struct{}, len(draftCodes))
	for _, code := range draftCodes {
		drafts[code] = struct{}{}
	}

	result := make([]dto.AvailableForm, 0, len(forms))
	for _, form := range forms {
		item := dto.AvailableForm{FormType: form}
		if _, ok := drafts[form.Code]; ok {
			item.HasDraft = true
		}
		latest, err := s.repo.LatestByStudentAndForm(ctx, claims.UserID, form.Code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
		}
		if latest != nil {
			status := latest.Status
			item.LatestStatus = &status
		}
		result = append(result, item)
	}
	return result, nil
}

// ListOwn returns the caller's submissions.
func (s *SubmissionService) ListOwn(ctx context.Context, claims *models.JWTClaims) ([]models.Submission, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submissions, err := s.repo.ListByStudent(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Get returns one submission, visible to its owner and to approver roles.
func (s *SubmissionService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Submission, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	}
	if submission.StudentID != claims.UserID {
		if _, ok := channelForRole(claims.Role); !ok {
			return nil, appErrors.ErrForbidden
		}
	}
	return submission, nil
}

func (s *SubmissionService) approverEvents(ctx context.Context, form *models.FormType, submission *models.Submission, claims *models.JWTClaims) []models.Notification {
	title := fmt.Sprintf("Approval required: %s", form.Code)
	message := fmt.Sprintf("%s submitted form %s (%s) for your review.", claims.FullName, form.Code, form.Name)

	var events []models.Notification
	appendEvent := func(recipientID string) {
		events = append(events, models.Notification{
			RecipientID:    recipientID,
			Title:          title,
			Message:        message,
			Severity:       models.SeverityInfo,
			SubmissionID:   &submission.ID,
			ActionRequired: true,
		})
	}

	if form.RequiresAdmin {
		admins, err := s.directory.ListActiveByRole(ctx, models.RoleAdmin)
		if err != nil {
			s.logger.Warn("failed to resolve admins for fan-out", zap.Error(err))
		}
		for _, admin := range admins {
			appendEvent(admin.ID)
		}
	}
	if form.RequiresSupervisor {
		supervisorID, err := s.repo.ApprovedSupervisorID(ctx, submission.StudentID)
		if err != nil {
			s.logger.Warn("failed to resolve supervisor for fan-out", zap.Error(err))
		} else if supervisorID != "" {
			appendEvent(supervisorID)
		}
	}
	if form.RequiresGEC {
		members, err := s.directory.ListActiveByRole(ctx, models.RoleGEC)
		if err != nil {
			s.logger.Warn("failed to resolve committee for fan-out", zap.Error(err))
		}
		for _, member := range members {
			appendEvent(member.ID)
		}
	}
	return events
}

func (s *SubmissionService) emitAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	newValues, _ := json.Marshal(values)
	log := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "submission",
		ResourceID: &resourceID,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "submission-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record submission audit", zap.Error(err))
	}
}

func initialChannelStatus(required bool) models.ChannelStatus {
	if required {
		return models.ChannelPending
	}
	return models.ChannelNotApplicable
}

func channelForRole(role models.UserRole) (models.ApprovalChannel, bool) {
	switch role {
	case models.RoleAdmin, models.RoleSuperAdmin:
		return models.ChannelAdmin, true
	case models.RoleSupervisor:
		return models.ChannelSupervisor, true
	case models.RoleGEC:
		return models.ChannelGEC, true
	default:
		return "", false
	}
}

func decisionEvent(submission *models.Submission, channel models.ApprovalChannel, action models.DecisionAction) models.Notification {
	var title string
	severity := models.SeverityInfo
	switch {
	case submission.Status == models.SubmissionRejected:
		title = fmt.Sprintf("Form %s rejected", submission.FormCode)
		severity = models.SeverityError
	case submission.Status == models.SubmissionApproved:
		title = fmt.Sprintf("Form %s fully approved", submission.FormCode)
		severity = models.SeveritySuccess
	case action == models.ActionApprove:
		title = fmt.Sprintf("Form %s approved by %s", submission.FormCode, channel)
	default:
		title = fmt.Sprintf("Form %s decision recorded", submission.FormCode)
	}

	return models.Notification{
		RecipientID:  submission.StudentID,
		Title:        title,
		Message:      fmt.Sprintf("The %s channel recorded a %s decision on your %s submission.", channel, action, submission.FormCode),
		Severity:     severity,
		SubmissionID: &submission.ID,
	}
}
