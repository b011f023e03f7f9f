package dto

import (
	"encoding/json"
	"time"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

// SubmitFormRequest is the payload for creating a new form submission.
type SubmitFormRequest struct {
	FormCode string          `json:"form_code" validate:"required"`
	Payload  json.RawMessage `json:"payload" validate:"required"`
}

// DecisionRequest records an approval-channel decision on a submission.
type DecisionRequest struct {
	Action  models.DecisionAction `json:"action" validate:"required,oneof=approve reject"`
	Comment string                `json:"comment"`
}

// SaveDraftRequest stores in-progress form content.
type SaveDraftRequest struct {
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// AdvanceRequest asks the engine to move a student to the next stage.
// StudentID is optional for students, who may only advance themselves.
type AdvanceRequest struct {
	StudentID string `json:"student_id"`
}

// UpdateSemesterRequest sets the semester counters on a student's progress.
type UpdateSemesterRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	Semester     int    `json:"semester" validate:"required,min=1,max=16"`
	AcademicYear string `json:"academic_year" validate:"required"`
}

// PrerequisiteResult reports whether a form's prerequisites are satisfied.
type PrerequisiteResult struct {
	FormCode string   `json:"form_code"`
	Met      bool     `json:"met"`
	Missing  []string `json:"missing"`
}

// FormRequirement describes one form gate of the current stage.
type FormRequirement struct {
	Code     string `json:"code"`
	Approved bool   `json:"approved"`
}

// WorkflowStatusResponse is the student-facing view of stage progress.
type WorkflowStatusResponse struct {
	Progress      *models.WorkflowProgress `json:"progress"`
	RequiredForms []FormRequirement        `json:"required_forms"`
	CanAdvance    bool                     `json:"can_advance"`
	Blocking      []string                 `json:"blocking,omitempty"`
}

// AvailableForm annotates a catalog form with the student's own state.
type AvailableForm struct {
	models.FormType
	LatestStatus *models.SubmissionStatus `json:"latest_status,omitempty"`
	HasDraft     bool                     `json:"has_draft"`
}

// AdvanceResponse reports the committed transition.
type AdvanceResponse struct {
	StudentID     string       `json:"student_id"`
	PreviousStage models.Stage `json:"previous_stage"`
	CurrentStage  models.Stage `json:"current_stage"`
	RequiredForms []string     `json:"required_forms"`
	AdvancedAt    time.Time    `json:"advanced_at"`
}

// WorkflowAnalyticsResponse wraps the per-stage aggregates.
type WorkflowAnalyticsResponse struct {
	Stages      []models.StageAnalytics `json:"stages"`
	GeneratedAt time.Time               `json:"generated_at"`
}
