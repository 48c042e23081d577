package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// SubmissionStore is the persistence surface the recorder writes through.
type SubmissionStore interface {
	SubmissionLookup
	GetByID(ctx context.Context, id uuid.UUID) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}

// RecordInput is everything the recorder needs once all checks have passed.
type RecordInput struct {
	UserID            uuid.UUID
	AssignmentID      uuid.UUID
	Decision          ResubmissionDecision
	AllowResubmission bool
	Content           ContentValidation
	IsLate            bool
	SubmittedAt       time.Time
}

// RecordResult is the persisted row and whether it replaced earlier work.
type RecordResult struct {
	Submission  models.Submission
	Resubmitted bool
}

// SubmissionRecorder persists the outcome of an accepted submission.
type SubmissionRecorder interface {
	Record(ctx context.Context, input RecordInput) (RecordResult, error)
}

type submissionRecorder struct {
	store SubmissionStore
}

// NewSubmissionRecorder builds a recorder that mutates exactly one row per call.
func NewSubmissionRecorder(store SubmissionStore) SubmissionRecorder {
	return &submissionRecorder{store: store}
}

// Record inserts the first submission or overwrites the existing one. A unique index
// violation on insert means another request created the row after our read, so the
// call falls through to the update path under the same resubmission policy.
func (r *submissionRecorder) Record(ctx context.Context, input RecordInput) (RecordResult, error) {
	var targetID uuid.UUID

	if input.Decision.FirstSubmission {
		submission := models.Submission{
			AssignmentID: input.AssignmentID,
			UserID:       input.UserID,
			ContentText:  input.Content.Text,
			ContentLink:  input.Content.Link,
			SubmittedAt:  input.SubmittedAt,
			IsLate:       input.IsLate,
			Status:       models.SubmissionStatusSubmitted,
		}

		err := r.store.Create(ctx, &submission)
		if err == nil {
			return RecordResult{Submission: submission}, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return RecordResult{}, err
		}

		existing, err := r.store.GetByAssignmentAndUser(ctx, input.AssignmentID, input.UserID)
		if err != nil {
			return RecordResult{}, err
		}
		if _, err := DecideResubmission(&existing, input.AllowResubmission); err != nil {
			return RecordResult{}, err
		}
		targetID = existing.ID
	} else {
		if input.Decision.ExistingSubmissionID == nil {
			return RecordResult{}, errors.New("resubmission without an existing submission id")
		}
		targetID = *input.Decision.ExistingSubmissionID
	}

	if err := r.store.UpdateFields(ctx, targetID, resubmissionFields(input)); err != nil {
		return RecordResult{}, err
	}

	updated, err := r.store.GetByID(ctx, targetID)
	if err != nil {
		return RecordResult{}, err
	}

	return RecordResult{Submission: updated, Resubmitted: true}, nil
}

// resubmissionFields resets the row to a fresh ungraded submission. Earlier grades
// remain available through the grade history.
func resubmissionFields(input RecordInput) map[string]interface{} {
	return map[string]interface{}{
		"content_text": input.Content.Text,
		"content_link": input.Content.Link,
		"submitted_at": input.SubmittedAt,
		"is_late":      input.IsLate,
		"status":       models.SubmissionStatusSubmitted,
		"score":        nil,
		"feedback":     nil,
		"graded_by":    nil,
		"graded_at":    nil,
		"updated_at":   input.SubmittedAt,
	}
}
