package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// SubmitAssignmentRequest is the JSON body accepted by the submit endpoint.
type SubmitAssignmentRequest struct {
	ContentText string  `json:"contentText"`
	ContentLink *string `json:"contentLink,omitempty"`
}

// SubmitCommand carries a submit request from the transport layer into the pipeline.
// UserID is the caller's claimed identity and is verified against the session.
type SubmitCommand struct {
	UserID       string
	AssignmentID uuid.UUID
	CourseID     uuid.UUID
	ContentText  string
	ContentLink  *string
}

// SubmissionStatusQuery asks whether the caller may submit or resubmit.
type SubmissionStatusQuery struct {
	UserID       string
	AssignmentID uuid.UUID
	CourseID     uuid.UUID
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uuid.UUID  `json:"id"`
	AssignmentID uuid.UUID  `json:"assignmentId"`
	UserID       uuid.UUID  `json:"userId"`
	ContentText  string     `json:"contentText"`
	ContentLink  *string    `json:"contentLink,omitempty"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	IsLate       bool       `json:"isLate"`
	Status       string     `json:"status"`
	Score        *float64   `json:"score"`
	Feedback     *string    `json:"feedback"`
	GradedBy     *uuid.UUID `json:"gradedBy,omitempty"`
	GradedAt     *time.Time `json:"gradedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// SubmitAssignmentResponse is the success payload of the submit endpoint.
type SubmitAssignmentResponse struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Submission SubmissionResponse `json:"submission"`
}

// SubmissionStatusResponse tells the learner what they may do before acting.
type SubmissionStatusResponse struct {
	Submission    *SubmissionResponse `json:"submission,omitempty"`
	HasSubmission bool                `json:"hasSubmission"`
	CanSubmit     bool                `json:"canSubmit"`
	CanResubmit   bool                `json:"canResubmit"`
	IsLate        bool                `json:"isLate"`
	Deadline      *time.Time          `json:"deadline"`
	Message       string              `json:"message,omitempty"`
}

// GradeSubmissionRequest is used by instructors to grade or return a submission.
type GradeSubmissionRequest struct {
	Status   string   `json:"status" validate:"required,oneof=graded resubmission_required"`
	Score    *float64 `json:"score" validate:"omitempty,gte=0,lte=100"`
	Feedback string   `json:"feedback" validate:"omitempty,max=5000"`
}

// SubmissionGradeHistoryResponse serializes grading history entries.
type SubmissionGradeHistoryResponse struct {
	Status   string    `json:"status"`
	Score    *float64  `json:"score"`
	Feedback string    `json:"feedback"`
	GradedBy uuid.UUID `json:"gradedBy"`
	GradedAt time.Time `json:"gradedAt"`
}

// GradedSubmissionResponse pairs a graded submission with its grading history.
type GradedSubmissionResponse struct {
	SubmissionResponse
	History []SubmissionGradeHistoryResponse `json:"history"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		UserID:       model.UserID,
		ContentText:  model.ContentText,
		ContentLink:  model.ContentLink,
		SubmittedAt:  model.SubmittedAt,
		IsLate:       model.IsLate,
		Status:       model.Status,
		Score:        model.Score,
		Feedback:     model.Feedback,
		GradedBy:     model.GradedBy,
		GradedAt:     model.GradedAt,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(models []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(models))
	for _, submission := range models {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}

// NewGradedSubmissionResponse attaches grading history to a submission DTO.
func NewGradedSubmissionResponse(model models.Submission, history []models.SubmissionGradeHistory) GradedSubmissionResponse {
	entries := make([]SubmissionGradeHistoryResponse, 0, len(history))
	for _, entry := range history {
		entries = append(entries, SubmissionGradeHistoryResponse{
			Status:   entry.Status,
			Score:    entry.Score,
			Feedback: entry.Feedback,
			GradedBy: entry.GradedBy,
			GradedAt: entry.GradedAt,
		})
	}

	return GradedSubmissionResponse{
		SubmissionResponse: NewSubmissionResponse(model),
		History:            entries,
	}
}
