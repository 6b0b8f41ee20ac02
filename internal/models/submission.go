package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExamSubmission statuses.
const (
	// SubmissionStatusSubmitted indicates answers were received but not graded.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates every question was auto-graded.
	SubmissionStatusGraded = "graded"
	// SubmissionStatusPendingReview indicates at least one short answer awaits
	// a human grader; the recorded score excludes those questions.
	SubmissionStatusPendingReview = "pending_review"
)

// ExamSubmission represents one student's answers for a paper, together with
// the grading outcome. Answers maps question id to the chosen values; Results
// stores the per-question grading records produced by the engine.
type ExamSubmission struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PaperID   uint           `gorm:"index;not null" json:"paper_id"`
	StudentID uint           `gorm:"index;not null" json:"student_id"`
	Answers   datatypes.JSON `gorm:"type:json" json:"answers"`
	Results   datatypes.JSON `gorm:"type:json" json:"results"`
	Score     float64        `json:"score"`
	Status    string         `gorm:"size:32;not null;default:submitted" json:"status"`
	GradedAt  *time.Time     `json:"graded_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Paper     Paper          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"paper"`
	Student   Student        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsGraded reports whether grading has fully settled, including any manual
// review of short answers.
func (s ExamSubmission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}
