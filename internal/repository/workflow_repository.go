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

const progressColumns = `id, student_id, current_stage, stage_start_date, is_stage_completed, stage_completed_at, semester, academic_year, updated_at`

// WorkflowRepository persists per-student stage progress.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// GetByStudent returns the student's progress row or nil when none exists.
func (r *WorkflowRepository) GetByStudent(ctx context.Context, studentID string) (*models.WorkflowProgress, error) {
	query := fmt.Sprintf("SELECT %s FROM workflow_progress WHERE student_id = $1", progressColumns)
	var progress models.WorkflowProgress
	if err := r.db.GetContext(ctx, &progress, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get workflow progress: %w", err)
	}
	return &progress, nil
}

// Create inserts the initial progress row. The unique constraint on
// student_id guards concurrent lazy creation; callers treat a conflict as
// "already created" and re-read.
func (r *WorkflowRepository) Create(ctx context.Context, progress *models.WorkflowProgress) error {
	if progress.ID == "" {
		progress.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if progress.StageStartDate.IsZero() {
		progress.StageStartDate = now
	}
	progress.UpdatedAt = now

	const query = `INSERT INTO workflow_progress (id, student_id, current_stage, stage_start_date, is_stage_completed, semester, academic_year, updated_at)
VALUES (:id, :student_id, :current_stage, :stage_start_date, :is_stage_completed, :semester, :academic_year, :updated_at)
ON CONFLICT (student_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, progress); err != nil {
		return fmt.Errorf("create workflow progress: %w", err)
	}
	return nil
}

// AdvanceStage commits the transition from one stage to the next as an
// atomic check-then-set: the update is gated on the current stage value so
// two concurrent advancement requests cannot double-advance a student. A
// completed-stage history row is written in the same transaction.
func (r *WorkflowRepository) AdvanceStage(ctx context.Context, studentID string, from, to models.Stage, now time.Time) (advanced bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin advance transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = `UPDATE workflow_progress
SET current_stage = $1, stage_start_date = $2, is_stage_completed = false, stage_completed_at = NULL, updated_at = $2
WHERE student_id = $3 AND current_stage = $4`
	res, err := tx.ExecContext(ctx, updateQuery, to, now, studentID, from)
	if err != nil {
		return false, fmt.Errorf("advance stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance stage rows: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return false, nil
	}

	const historyQuery = `INSERT INTO stage_history (id, student_id, stage, completed_at)
VALUES ($1, $2, $3, $4)`
	if _, err = tx.ExecContext(ctx, historyQuery, uuid.NewString(), studentID, from, now); err != nil {
		return false, fmt.Errorf("record stage history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit advance: %w", err)
	}
	return true, nil
}

// UpdateSemester sets the semester counters on the progress row.
func (r *WorkflowRepository) UpdateSemester(ctx context.Context, studentID string, semester int, academicYear string, now time.Time) (bool, error) {
	const query = `UPDATE workflow_progress SET semester = $1, academic_year = $2, updated_at = $3 WHERE student_id = $4`
	res, err := r.db.ExecContext(ctx, query, semester, academicYear, now, studentID)
	if err != nil {
		return false, fmt.Errorf("update semester: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update semester rows: %w", err)
	}
	return affected > 0, nil
}

// ListRequiringAttention returns active students whose stage started before
// the cutoff and is not completed, longest-lingering first.
func (r *WorkflowRepository) ListRequiringAttention(ctx context.Context, cutoff, now time.Time) ([]models.StudentAttention, error) {
	const query = `SELECT wp.student_id, u.full_name, u.email, wp.current_stage, wp.stage_start_date,
EXTRACT(DAY FROM ($2::timestamptz - wp.stage_start_date))::int AS days_in_stage
FROM workflow_progress wp
JOIN users u ON u.id = wp.student_id
WHERE u.active = true AND wp.is_stage_completed = false AND wp.stage_start_date < $1
ORDER BY days_in_stage DESC`
	var students []models.StudentAttention
	if err := r.db.SelectContext(ctx, &students, query, cutoff, now); err != nil {
		return nil, fmt.Errorf("list students requiring attention: %w", err)
	}
	return students, nil
}

// StageAnalytics aggregates student distribution and pending approvals per stage.
func (r *WorkflowRepository) StageAnalytics(ctx context.Context, now time.Time) ([]models.StageAnalytics, error) {
	const distributionQuery = `SELECT current_stage AS stage, COUNT(*) AS student_count,
COALESCE(AVG(EXTRACT(DAY FROM ($1::timestamptz - stage_start_date))), 0) AS avg_days_in_stage
FROM workflow_progress
GROUP BY current_stage`
	var rows []models.StageAnalytics
	if err := r.db.SelectContext(ctx, &rows, distributionQuery, now); err != nil {
		return nil, fmt.Errorf("stage distribution: %w", err)
	}

	const pendingQuery = `SELECT ft.stage AS stage, COUNT(*) AS pending_approvals
FROM submissions s
JOIN form_types ft ON ft.id = s.form_type_id
WHERE s.status IN ('submitted', 'under_review')
GROUP BY ft.stage`
	var pending []struct {
		Stage            models.Stage `db:"stage"`
		PendingApprovals int          `db:"pending_approvals"`
	}
	if err := r.db.SelectContext(ctx, &pending, pendingQuery); err != nil {
		return nil, fmt.Errorf("pending approvals: %w", err)
	}

	byStage := make(map[models.Stage]int, len(pending))
	for _, p := range pending {
		byStage[p.Stage] = p.PendingApprovals
	}
	for i := range rows {
		rows[i].PendingApprovals = byStage[rows[i].Stage]
	}
	return rows, nil
}
