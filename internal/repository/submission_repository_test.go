package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var submissionTestColumns = []string{
	"id", "student_id", "form_type_id", "form_code", "payload", "status", "submitted_at", "updated_at",
	"admin_status", "admin_by", "admin_at", "admin_comment",
	"supervisor_status", "supervisor_by", "supervisor_at", "supervisor_comment",
	"gec_status", "gec_by", "gec_at", "gec_comment",
}

func submissionRow(id string, status models.SubmissionStatus, admin, supervisor, gec models.ChannelStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(submissionTestColumns).
		AddRow(id, "stu-1", "ft-1", "PHDEE02-B", []byte(`{}`), status, now, now,
			admin, nil, nil, nil,
			supervisor, nil, nil, nil,
			gec, nil, nil, nil)
}

func TestSubmissionRepositoryCreateClearsDraft(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM form_drafts WHERE student_id = $1 AND form_code = $2")).
		WithArgs("stu-1", "PHDEE02-A").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	submission := &models.Submission{
		StudentID:        "stu-1",
		FormTypeID:       "ft-1",
		FormCode:         "PHDEE02-A",
		Payload:          []byte(`{"supervisor_id":"sup-1"}`),
		Status:           models.SubmissionSubmitted,
		AdminStatus:      models.ChannelNotApplicable,
		SupervisorStatus: models.ChannelPending,
		GECStatus:        models.ChannelNotApplicable,
	}
	require.NoError(t, repo.Create(context.Background(), submission))
	assert.NotEmpty(t, submission.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryFindByIDMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, form_type_id, form_code")).
		WithArgs("sub-404").
		WillReturnError(sql.ErrNoRows)

	found, err := repo.FindByID(context.Background(), "sub-404")
	require.NoError(t, err)
	assert.Nil(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCountActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submissions")).
		WithArgs("stu-1", "ft-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountActive(context.Background(), "stu-1", "ft-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryHasApproved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM submissions")).
		WithArgs("stu-1", "PHDEE02-A").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))
	ok, err := repo.HasApproved(context.Background(), "stu-1", "PHDEE02-A")
	require.NoError(t, err)
	assert.True(t, ok)

	// A newer rejected submission supersedes an older approval.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM submissions")).
		WithArgs("stu-1", "PHDEE02-A").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))
	ok, err = repo.HasApproved(context.Background(), "stu-1", "PHDEE02-A")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM submissions")).
		WithArgs("stu-1", "PHDEE02-A").
		WillReturnError(sql.ErrNoRows)
	ok, err = repo.HasApproved(context.Background(), "stu-1", "PHDEE02-A")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryApprovedSupervisorID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(payload->>'supervisor_id', '')")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("sup-1"))
	supervisorID, err := repo.ApprovedSupervisorID(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "sup-1", supervisorID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(payload->>'supervisor_id', '')")).
		WithArgs("stu-2").
		WillReturnError(sql.ErrNoRows)
	supervisorID, err = repo.ApprovedSupervisorID(context.Background(), "stu-2")
	require.NoError(t, err)
	assert.Empty(t, supervisorID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryRecordDecision(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("sub-1").
		WillReturnRows(submissionRow("sub-1", models.SubmissionUnderReview,
			models.ChannelApproved, models.ChannelPending, models.ChannelNotApplicable))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	required := []models.ApprovalChannel{models.ChannelAdmin, models.ChannelSupervisor}
	updated, err := repo.RecordDecision(context.Background(), DecisionParams{
		SubmissionID: "sub-1",
		Channel:      models.ChannelSupervisor,
		Status:       models.ChannelApproved,
		ActorID:      "sup-1",
	}, func(current *models.Submission) models.SubmissionStatus {
		snapshot := current.ChannelSnapshot()
		for _, channel := range required {
			if snapshot[channel] != models.ChannelApproved {
				return models.SubmissionUnderReview
			}
		}
		return models.SubmissionApproved
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, updated.Status)
	assert.Equal(t, models.ChannelApproved, updated.SupervisorStatus)
	require.NotNil(t, updated.SupervisorBy)
	assert.Equal(t, "sup-1", *updated.SupervisorBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryRecordDecisionMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("sub-404").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.RecordDecision(context.Background(), DecisionParams{
		SubmissionID: "sub-404",
		Channel:      models.ChannelAdmin,
		Status:       models.ChannelApproved,
		ActorID:      "adm-1",
	}, func(*models.Submission) models.SubmissionStatus { return models.SubmissionApproved })
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
