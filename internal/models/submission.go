package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// SubmissionStatusSubmitted indicates the submission awaits grading.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates the submission has been evaluated.
	SubmissionStatusGraded = "graded"
	// SubmissionStatusResubmissionRequired indicates the grader asked for another attempt.
	SubmissionStatusResubmissionRequired = "resubmission_required"
)

// Submission is a learner's work for an assignment. There is at most one row per
// (assignment, user); resubmissions mutate that row.
type Submission struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AssignmentID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_submissions_assignment_user" json:"assignmentId"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_submissions_assignment_user;index" json:"userId"`
	ContentText  string     `gorm:"type:text;not null" json:"contentText"`
	ContentLink  *string    `gorm:"size:2048" json:"contentLink,omitempty"`
	SubmittedAt  time.Time  `gorm:"not null" json:"submittedAt"`
	IsLate       bool       `gorm:"not null" json:"isLate"`
	Status       string     `gorm:"size:32;not null" json:"status"`
	Score        *float64   `json:"score"`
	Feedback     *string    `gorm:"type:text" json:"feedback"`
	GradedBy     *uuid.UUID `gorm:"type:uuid" json:"gradedBy"`
	GradedAt     *time.Time `json:"gradedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (s *Submission) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsGraded reports whether the submission has a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// SubmissionGradeHistory records every grading action taken on a submission.
type SubmissionGradeHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" json:"submissionId"`
	Status       string    `gorm:"size:32;not null" json:"status"`
	Score        *float64  `json:"score"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	GradedBy     uuid.UUID `gorm:"type:uuid;not null" json:"gradedBy"`
	GradedAt     time.Time `gorm:"not null" json:"gradedAt"`
}
