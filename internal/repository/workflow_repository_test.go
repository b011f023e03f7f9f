package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

func TestWorkflowRepositoryGetByStudentMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, current_stage")).
		WithArgs("stu-1").
		WillReturnError(sql.ErrNoRows)

	progress, err := repo.GetByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Nil(t, progress)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryAdvanceStage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE workflow_progress")).
		WithArgs(models.StageCourseRegistration, now, "stu-1", models.StageSupervisorConsent).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stage_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	advanced, err := repo.AdvanceStage(context.Background(), "stu-1",
		models.StageSupervisorConsent, models.StageCourseRegistration, now)
	require.NoError(t, err)
	assert.True(t, advanced)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryAdvanceStageStaleRead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	now := time.Now().UTC()

	// Another request already moved the student; the gated update matches no
	// row and the transaction rolls back without writing history.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE workflow_progress")).
		WithArgs(models.StageCourseRegistration, now, "stu-1", models.StageSupervisorConsent).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	advanced, err := repo.AdvanceStage(context.Background(), "stu-1",
		models.StageSupervisorConsent, models.StageCourseRegistration, now)
	require.NoError(t, err)
	assert.False(t, advanced)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryUpdateSemester(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE workflow_progress SET semester")).
		WithArgs(3, "2026-2027", now, "stu-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.UpdateSemester(context.Background(), "stu-1", 3, "2026-2027", now)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE workflow_progress SET semester")).
		WithArgs(3, "2026-2027", now, "stu-404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.UpdateSemester(context.Background(), "stu-404", 3, "2026-2027", now)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryListRequiringAttention(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -90)

	rows := sqlmock.NewRows([]string{"student_id", "full_name", "email", "current_stage", "stage_start_date", "days_in_stage"}).
		AddRow("stu-1", "Ayesha Khan", "ayesha@example.edu", "research_phase", now.AddDate(0, 0, -120), 120).
		AddRow("stu-2", "Bilal Raza", "bilal@example.edu", "comprehensive_exam", now.AddDate(0, 0, -95), 95)
	mock.ExpectQuery(regexp.QuoteMeta("FROM workflow_progress wp")).
		WithArgs(cutoff, now).
		WillReturnRows(rows)

	students, err := repo.ListRequiringAttention(context.Background(), cutoff, now)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "stu-1", students[0].StudentID)
	assert.Equal(t, 120, students[0].DaysInStage)
	assert.Equal(t, models.StageResearchPhase, students[0].CurrentStage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryStageAnalytics(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT current_stage AS stage")).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"stage", "student_count", "avg_days_in_stage"}).
			AddRow("supervisor_consent", 10, 14.5).
			AddRow("research_phase", 4, 230.0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ft.stage AS stage")).
		WillReturnRows(sqlmock.NewRows([]string{"stage", "pending_approvals"}).
			AddRow("supervisor_consent", 6))

	stages, err := repo.StageAnalytics(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, 6, stages[0].PendingApprovals)
	assert.Equal(t, 0, stages[1].PendingApprovals)
	require.NoError(t, mock.ExpectationsWereMet())
}
