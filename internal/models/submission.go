package models

import (
	"encoding/json"
	"time"
)

// SubmissionStatus is the derived overall state of a submission.
type SubmissionStatus string

const (
	SubmissionSubmitted   SubmissionStatus = "submitted"
	SubmissionUnderReview SubmissionStatus = "under_review"
	SubmissionApproved    SubmissionStatus = "approved"
	SubmissionRejected    SubmissionStatus = "rejected"
)

// ChannelStatus is the decision state of one approval channel.
type ChannelStatus string

const (
	ChannelPending       ChannelStatus = "pending"
	ChannelApproved      ChannelStatus = "approved"
	ChannelRejected      ChannelStatus = "rejected"
	ChannelNotApplicable ChannelStatus = "n/a"
)

// DecisionAction is the verb an approver applies to a channel.
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

// Submission is an instance of a student filing a form type. Each approval
// channel carries its own status, approver and decision timestamp; the
// aggregate status is always derived from the channel snapshot.
type Submission struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	FormTypeID  string           `db:"form_type_id" json:"form_type_id"`
	FormCode    string           `db:"form_code" json:"form_code"`
	Payload     json.RawMessage  `db:"payload" json:"payload"`
	Status      SubmissionStatus `db:"status" json:"status"`
	SubmittedAt time.Time        `db:"submitted_at" json:"submitted_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`

	AdminStatus       ChannelStatus `db:"admin_status" json:"admin_status"`
	AdminBy           *string       `db:"admin_by" json:"admin_by,omitempty"`
	AdminAt           *time.Time    `db:"admin_at" json:"admin_at,omitempty"`
	AdminComment      *string       `db:"admin_comment" json:"admin_comment,omitempty"`
	SupervisorStatus  ChannelStatus `db:"supervisor_status" json:"supervisor_status"`
	SupervisorBy      *string       `db:"supervisor_by" json:"supervisor_by,omitempty"`
	SupervisorAt      *time.Time    `db:"supervisor_at" json:"supervisor_at,omitempty"`
	SupervisorComment *string       `db:"supervisor_comment" json:"supervisor_comment,omitempty"`
	GECStatus         ChannelStatus `db:"gec_status" json:"gec_status"`
	GECBy             *string       `db:"gec_by" json:"gec_by,omitempty"`
	GECAt             *time.Time    `db:"gec_at" json:"gec_at,omitempty"`
	GECComment        *string       `db:"gec_comment" json:"gec_comment,omitempty"`
}

// ChannelSnapshot returns the submission's current per-channel states.
func (s *Submission) ChannelSnapshot() map[ApprovalChannel]ChannelStatus {
	return map[ApprovalChannel]ChannelStatus{
		ChannelAdmin:      s.AdminStatus,
		ChannelSupervisor: s.SupervisorStatus,
		ChannelGEC:        s.GECStatus,
	}
}

// FormDraft stores saved-but-unsubmitted form progress, unique per
// (student, form code). Cleared when the student submits the form.
type FormDraft struct {
	ID        string          `db:"id" json:"id"`
	StudentID string          `db:"student_id" json:"student_id"`
	FormCode  string          `db:"form_code" json:"form_code"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	SavedAt   time.Time       `db:"saved_at" json:"saved_at"`
}
