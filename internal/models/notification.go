package models

import "time"

// NotificationSeverity classifies how urgent a notification is.
type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "info"
	SeveritySuccess NotificationSeverity = "success"
	SeverityWarning NotificationSeverity = "warning"
	SeverityError   NotificationSeverity = "error"
)

// Notification is a write-once event record delivered to a stakeholder on a
// decision boundary. Delivery failures never roll back the primary mutation.
type Notification struct {
	ID             string               `db:"id" json:"id"`
	RecipientID    string               `db:"recipient_id" json:"recipient_id"`
	Title          string               `db:"title" json:"title"`
	Message        string               `db:"message" json:"message"`
	Severity       NotificationSeverity `db:"severity" json:"severity"`
	SubmissionID   *string              `db:"submission_id" json:"submission_id,omitempty"`
	ActionRequired bool                 `db:"action_required" json:"action_required"`
	Read           bool                 `db:"read" json:"read"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
}
