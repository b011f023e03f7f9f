package models

import "time"

// WorkflowProgress tracks one student's position in the stage sequence.
// Exactly one row exists per student, created lazily on first status query.
type WorkflowProgress struct {
	ID               string     `db:"id" json:"id"`
	StudentID        string     `db:"student_id" json:"student_id"`
	CurrentStage     Stage      `db:"current_stage" json:"current_stage"`
	StageStartDate   time.Time  `db:"stage_start_date" json:"stage_start_date"`
	IsStageCompleted bool       `db:"is_stage_completed" json:"is_stage_completed"`
	StageCompletedAt *time.Time `db:"stage_completed_at" json:"stage_completed_at,omitempty"`
	Semester         int        `db:"semester" json:"semester"`
	AcademicYear     string     `db:"academic_year" json:"academic_year"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// StageAnalytics aggregates workflow distribution for reporting.
type StageAnalytics struct {
	Stage            Stage   `db:"stage" json:"stage"`
	StudentCount     int     `db:"student_count" json:"student_count"`
	AvgDaysInStage   float64 `db:"avg_days_in_stage" json:"avg_days_in_stage"`
	PendingApprovals int     `db:"pending_approvals" json:"pending_approvals"`
}

// StudentAttention describes a student lingering in a stage past the
// configured threshold.
type StudentAttention struct {
	StudentID      string    `db:"student_id" json:"student_id"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          string    `db:"email" json:"email"`
	CurrentStage   Stage     `db:"current_stage" json:"current_stage"`
	StageStartDate time.Time `db:"stage_start_date" json:"stage_start_date"`
	DaysInStage    int       `db:"days_in_stage" json:"days_in_stage"`
}
