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

// DraftRepository persists saved-but-unsubmitted form progress. Uniqueness on
// (student_id, form_code) makes saving idempotent.
type DraftRepository struct {
	db *sqlx.DB
}

// NewDraftRepository constructs the repository.
func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Upsert inserts or replaces the draft for the student/form pair.
func (r *DraftRepository) Upsert(ctx context.Context, draft *models.FormDraft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	draft.SavedAt = time.Now().UTC()

	const query = `INSERT INTO form_drafts (id, student_id, form_code, payload, saved_at)
VALUES (:id, :student_id, :form_code, :payload, :saved_at)
ON CONFLICT (student_id, form_code) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`
	if _, err := r.db.NamedExecContext(ctx, query, draft); err != nil {
		return fmt.Errorf("upsert form draft: %w", err)
	}
	return nil
}

// Get returns the stored draft or nil when none exists.
func (r *DraftRepository) Get(ctx context.Context, studentID, formCode string) (*models.FormDraft, error) {
	const query = `SELECT id, student_id, form_code, payload, saved_at FROM form_drafts
WHERE student_id = $1 AND form_code = $2`
	var draft models.FormDraft
	if err := r.db.GetContext(ctx, &draft, query, studentID, formCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get form draft: %w", err)
	}
	return &draft, nil
}

// ListCodes returns the form codes the student has drafts for.
func (r *DraftRepository) ListCodes(ctx context.Context, studentID string) ([]string, error) {
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, "SELECT form_code FROM form_drafts WHERE student_id = $1", studentID); err != nil {
		return nil, fmt.Errorf("list draft codes: %w", err)
	}
	return codes, nil
}
