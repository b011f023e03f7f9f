package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

const submissionColumns = `id, student_id, form_type_id, form_code, payload, status, submitted_at, updated_at,
admin_status, admin_by, admin_at, admin_comment,
supervisor_status, supervisor_by, supervisor_at, supervisor_comment,
gec_status, gec_by, gec_at, gec_comment`

// SubmissionRepository persists form submissions and channel decisions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts the submission and clears any saved draft for the same
// (student, form code) pair in one transaction.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) (err error) {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = now
	}
	submission.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO submissions (id, student_id, form_type_id, form_code, payload, status, submitted_at, updated_at,
admin_status, supervisor_status, gec_status)
VALUES (:id, :student_id, :form_type_id, :form_code, :payload, :status, :submitted_at, :updated_at,
:admin_status, :supervisor_status, :gec_status)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, submission); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM form_drafts WHERE student_id = $1 AND form_code = $2",
		submission.StudentID, submission.FormCode); err != nil {
		return fmt.Errorf("clear form draft: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit submission: %w", err)
	}
	return nil
}

// FindByID loads a single submission.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1", submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &submission, nil
}

// LatestByStudentAndForm returns the student's most recent submission of the
// form, or nil when none exists.
func (r *SubmissionRepository) LatestByStudentAndForm(ctx context.Context, studentID, formCode string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions
WHERE student_id = $1 AND form_code = $2
ORDER BY submitted_at DESC
LIMIT 1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, studentID, formCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest submission: %w", err)
	}
	return &submission, nil
}

// CountActive counts the student's submissions of a form type that still
// consume quota. Rejected submissions are excluded; drafts live in their own
// table and never count.
func (r *SubmissionRepository) CountActive(ctx context.Context, studentID, formTypeID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions
WHERE student_id = $1 AND form_type_id = $2 AND status <> 'rejected'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, formTypeID); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

// HasApproved reports whether the student's most recent submission of the
// form is approved.
func (r *SubmissionRepository) HasApproved(ctx context.Context, studentID, formCode string) (bool, error) {
	const query = `SELECT status FROM submissions
WHERE student_id = $1 AND form_code = $2
ORDER BY submitted_at DESC
LIMIT 1`
	var status models.SubmissionStatus
	if err := r.db.GetContext(ctx, &status, query, studentID, formCode); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved submission: %w", err)
	}
	return status == models.SubmissionApproved, nil
}

// ListByStudent returns the student's submissions, newest first.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE student_id = $1 ORDER BY submitted_at DESC", submissionColumns)
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, studentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// ApprovedSupervisorID resolves the student's supervisor from the latest
// approved supervisor-consent submission. Returns "" when no consent exists.
func (r *SubmissionRepository) ApprovedSupervisorID(ctx context.Context, studentID string) (string, error) {
	const query = `SELECT COALESCE(payload->>'supervisor_id', '') FROM submissions
WHERE student_id = $1 AND form_code = 'PHDEE02-A' AND status = 'approved'
ORDER BY submitted_at DESC
LIMIT 1`
	var supervisorID string
	if err := r.db.GetContext(ctx, &supervisorID, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("resolve supervisor: %w", err)
	}
	return supervisorID, nil
}

// DecisionParams holds values for recording one channel decision.
type DecisionParams struct {
	SubmissionID string
	Channel      models.ApprovalChannel
	Status       models.ChannelStatus
	ActorID      string
	Comment      *string
	DecidedAt    time.Time
}

// RecordDecision applies a channel decision and recomputes the aggregate
// status inside one transaction. The row is locked first so the aggregate is
// always derived from the authoritative current snapshot, not from a value
// read before a concurrent sibling-channel update.
func (r *SubmissionRepository) RecordDecision(ctx context.Context, params DecisionParams, aggregate func(*models.Submission) models.SubmissionStatus) (result *models.Submission, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin decision transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockQuery := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1 FOR UPDATE", submissionColumns)
	var submission models.Submission
	if err = tx.GetContext(ctx, &submission, lockQuery, params.SubmissionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock submission: %w", err)
	}

	decidedAt := params.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}

	switch params.Channel {
	case models.ChannelAdmin:
		submission.AdminStatus = params.Status
		submission.AdminBy = &params.ActorID
		submission.AdminAt = &decidedAt
		submission.AdminComment = params.Comment
	case models.ChannelSupervisor:
		submission.SupervisorStatus = params.Status
		submission.SupervisorBy = &params.ActorID
		submission.SupervisorAt = &decidedAt
		submission.SupervisorComment = params.Comment
	case models.ChannelGEC:
		submission.GECStatus = params.Status
		submission.GECBy = &params.ActorID
		submission.GECAt = &decidedAt
		submission.GECComment = params.Comment
	default:
		return nil, fmt.Errorf("unknown approval channel %q", params.Channel)
	}

	submission.Status = aggregate(&submission)
	submission.UpdatedAt = time.Now().UTC()

	const updateQuery = `UPDATE submissions SET status = :status, updated_at = :updated_at,
admin_status = :admin_status, admin_by = :admin_by, admin_at = :admin_at, admin_comment = :admin_comment,
supervisor_status = :supervisor_status, supervisor_by = :supervisor_by, supervisor_at = :supervisor_at, supervisor_comment = :supervisor_comment,
gec_status = :gec_status, gec_by = :gec_by, gec_at = :gec_at, gec_comment = :gec_comment
WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, updateQuery, &submission); err != nil {
		return nil, fmt.Errorf("update submission decision: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decision: %w", err)
	}
	return &submission, nil
}
