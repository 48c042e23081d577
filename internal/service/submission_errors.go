package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SubmissionErrorKind classifies pipeline failures for transport mapping.
type SubmissionErrorKind string

const (
	KindUnauthorized           SubmissionErrorKind = "Unauthorized"
	KindNotFound               SubmissionErrorKind = "NotFound"
	KindValidationError        SubmissionErrorKind = "ValidationError"
	KindValidationFailed       SubmissionErrorKind = "ValidationFailed"
	KindDeadlineExceeded       SubmissionErrorKind = "DeadlineExceeded"
	KindResubmissionNotAllowed SubmissionErrorKind = "ResubmissionNotAllowed"
	KindAssignmentClosed       SubmissionErrorKind = "AssignmentClosed"
	KindConflict               SubmissionErrorKind = "Conflict"
	KindFetchError             SubmissionErrorKind = "FetchError"
)

// Error codes surfaced to clients in the error envelope.
const (
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeNotEnrolled            = "NOT_ENROLLED"
	CodeNotFound               = "NOT_FOUND"
	CodeValidationError        = "VALIDATION_ERROR"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeDeadlineExceeded       = "DEADLINE_EXCEEDED"
	CodeResubmissionNotAllowed = "RESUBMISSION_NOT_ALLOWED"
	CodeAssignmentClosed       = "ASSIGNMENT_CLOSED"
	CodeSubmissionInProgress   = "SUBMISSION_IN_PROGRESS"
	CodeFetchError             = "FETCH_ERROR"
)

// SubmitStep names a state of the submit pipeline.
type SubmitStep string

const (
	StepAuthCheck         SubmitStep = "auth_check"
	StepEnrollmentCheck   SubmitStep = "enrollment_check"
	StepAssignmentCheck   SubmitStep = "assignment_check"
	StepDeadlineCheck     SubmitStep = "deadline_check"
	StepContentValidation SubmitStep = "content_validation"
	StepResubmissionCheck SubmitStep = "resubmission_check"
	StepRecord            SubmitStep = "record"

	// StepSubmissionLookup labels the status query's read of the existing submission.
	StepSubmissionLookup SubmitStep = "submission_lookup"
)

// SubmissionError is the tagged failure returned by every pipeline step.
type SubmissionError struct {
	Kind    SubmissionErrorKind
	Code    string
	Message string
	// Step is set by the orchestrator to the state that failed.
	Step SubmitStep
	// Fields holds per-field messages for validation failures.
	Fields map[string]string
	// ExistingSubmissionID is surfaced when a prior submission blocked the request.
	ExistingSubmissionID *uuid.UUID
	Err                  error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another SubmissionError by code so errors.Is works against the
// sentinel values below.
func (e *SubmissionError) Is(target error) bool {
	var other *SubmissionError
	if !errors.As(target, &other) || other == nil || e == nil {
		return false
	}
	return e.Code == other.Code
}

// Sentinel values for errors.Is comparisons.
var (
	ErrNotAuthenticated       = &SubmissionError{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: "not authenticated"}
	ErrNotEnrolled            = &SubmissionError{Kind: KindUnauthorized, Code: CodeNotEnrolled, Message: "you are not enrolled in this course"}
	ErrSubmissionTargetAbsent = &SubmissionError{Kind: KindNotFound, Code: CodeNotFound, Message: "assignment not found"}
	ErrDeadlineExceeded       = &SubmissionError{Kind: KindDeadlineExceeded, Code: CodeDeadlineExceeded, Message: "the deadline has passed and late submissions are not allowed"}
	ErrResubmissionNotAllowed = &SubmissionError{Kind: KindResubmissionNotAllowed, Code: CodeResubmissionNotAllowed, Message: "you have already submitted this assignment and resubmissions are not allowed"}
	ErrAssignmentClosed       = &SubmissionError{Kind: KindAssignmentClosed, Code: CodeAssignmentClosed, Message: "this assignment is closed and no longer accepts submissions"}
	ErrSubmissionInProgress   = &SubmissionError{Kind: KindConflict, Code: CodeSubmissionInProgress, Message: "another submission for this assignment is being processed"}
	ErrContentInvalid         = &SubmissionError{Kind: KindValidationFailed, Code: CodeValidationFailed, Message: "submission content is invalid"}
	ErrMalformedRequest       = &SubmissionError{Kind: KindValidationError, Code: CodeValidationError, Message: "malformed request"}
	ErrSubmissionFetch        = &SubmissionError{Kind: KindFetchError, Code: CodeFetchError, Message: "failed to load submission data"}
)

func newSubmissionError(base *SubmissionError, cause error) *SubmissionError {
	clone := *base
	clone.Err = cause
	return &clone
}

func fetchError(message string, cause error) *SubmissionError {
	err := newSubmissionError(ErrSubmissionFetch, cause)
	if message != "" {
		err.Message = message
	}
	return err
}

// NewMalformedRequestError builds a ValidationError for requests that fail shape checks
// before reaching the pipeline.
func NewMalformedRequestError(message string, fields map[string]string) *SubmissionError {
	err := newSubmissionError(ErrMalformedRequest, nil)
	if message != "" {
		err.Message = message
	}
	err.Fields = fields
	return err
}

// asSubmissionError folds any error into the taxonomy, tagging the failing step.
func asSubmissionError(err error, step SubmitStep) *SubmissionError {
	var submissionErr *SubmissionError
	if errors.As(err, &submissionErr) {
		clone := *submissionErr
		if clone.Step == "" {
			clone.Step = step
		}
		return &clone
	}
	folded := fetchError("", err)
	folded.Step = step
	return folded
}
