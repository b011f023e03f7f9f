package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

// ExamRepository reads examination and defense outcome records maintained by
// the examination office. The workflow core never writes these tables.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// LatestComprehensiveResult returns the student's most recent comprehensive
// exam record, or nil when none exists.
func (r *ExamRepository) LatestComprehensiveResult(ctx context.Context, studentID string) (*models.ComprehensiveExam, error) {
	const query = `SELECT id, student_id, attempt_number, overall_result, held_at, created_at
FROM comprehensive_exams
WHERE student_id = $1
ORDER BY held_at DESC
LIMIT 1`
	var exam models.ComprehensiveExam
	if err := r.db.GetContext(ctx, &exam, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest comprehensive exam: %w", err)
	}
	return &exam, nil
}

// LatestDefense returns the student's most recent defense of the given type.
func (r *ExamRepository) LatestDefense(ctx context.Context, studentID string, defenseType models.DefenseType) (*models.DefenseRecord, error) {
	const query = `SELECT id, student_id, defense_type, overall_result, held_at, created_at
FROM defense_records
WHERE student_id = $1 AND defense_type = $2
ORDER BY held_at DESC
LIMIT 1`
	var record models.DefenseRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, defenseType); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest defense: %w", err)
	}
	return &record, nil
}

// PassedDefenseTypes returns the distinct defense types the student has
// passed at least once.
func (r *ExamRepository) PassedDefenseTypes(ctx context.Context, studentID string) ([]models.DefenseType, error) {
	const query = `SELECT DISTINCT defense_type FROM defense_records
WHERE student_id = $1 AND overall_result = 'pass'`
	var types []models.DefenseType
	if err := r.db.SelectContext(ctx, &types, query, studentID); err != nil {
		return nil, fmt.Errorf("passed defense types: %w", err)
	}
	return types, nil
}
