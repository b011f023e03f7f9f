package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

const formTypeColumns = `id, code, name, stage, requires_admin, requires_supervisor, requires_gec, prerequisites, max_submissions, active, created_at`

// FormTypeRepository provides read access to the form catalog table.
type FormTypeRepository struct {
	db *sqlx.DB
}

// NewFormTypeRepository constructs the repository.
func NewFormTypeRepository(db *sqlx.DB) *FormTypeRepository {
	return &FormTypeRepository{db: db}
}

// FindByCode returns the form type with the given code. sql.ErrNoRows
// propagates so callers can distinguish unknown codes.
func (r *FormTypeRepository) FindByCode(ctx context.Context, code string) (*models.FormType, error) {
	query := fmt.Sprintf("SELECT %s FROM form_types WHERE code = $1", formTypeColumns)
	var form models.FormType
	if err := r.db.GetContext(ctx, &form, query, code); err != nil {
		return nil, err
	}
	return &form, nil
}

// ListActive returns every active form type ordered by stage then code.
func (r *FormTypeRepository) ListActive(ctx context.Context) ([]models.FormType, error) {
	query := fmt.Sprintf("SELECT %s FROM form_types WHERE active = true ORDER BY stage, code", formTypeColumns)
	var forms []models.FormType
	if err := r.db.SelectContext(ctx, &forms, query); err != nil {
		return nil, fmt.Errorf("list active form types: %w", err)
	}
	return forms, nil
}
