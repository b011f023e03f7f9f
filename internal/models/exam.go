package models

import "time"

// ExamResult is the recorded outcome of an examination attempt.
type ExamResult string

const (
	ExamPass ExamResult = "pass"
	ExamFail ExamResult = "fail"
)

// DefenseType distinguishes the defense venues a student goes through.
type DefenseType string

const (
	DefenseSynopsis DefenseType = "synopsis"
	DefenseInHouse  DefenseType = "in_house"
	DefensePublic   DefenseType = "public"
)

// ComprehensiveExam is a student's comprehensive examination record,
// maintained by the examination office and read by the advancement engine.
type ComprehensiveExam struct {
	ID            string     `db:"id" json:"id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	AttemptNumber int        `db:"attempt_number" json:"attempt_number"`
	OverallResult ExamResult `db:"overall_result" json:"overall_result"`
	HeldAt        time.Time  `db:"held_at" json:"held_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// DefenseRecord captures a synopsis, in-house or public defense outcome.
type DefenseRecord struct {
	ID            string      `db:"id" json:"id"`
	StudentID     string      `db:"student_id" json:"student_id"`
	DefenseType   DefenseType `db:"defense_type" json:"defense_type"`
	OverallResult ExamResult  `db:"overall_result" json:"overall_result"`
	HeldAt        time.Time   `db:"held_at" json:"held_at"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}
