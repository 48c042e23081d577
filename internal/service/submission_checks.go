package service

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// IdentityProvider resolves the user bound to the current request session.
// It returns (nil, nil) when there is no session.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// EnrollmentLookup reports whether a user is enrolled in a course.
type EnrollmentLookup interface {
	Exists(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
}

// AssignmentLookup fetches assignments by id.
type AssignmentLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.Assignment, error)
}

// SubmissionLookup fetches the single submission of a user for an assignment.
type SubmissionLookup interface {
	GetByAssignmentAndUser(ctx context.Context, assignmentID, userID uuid.UUID) (models.Submission, error)
}

// SubmissionContent is the learner supplied payload.
type SubmissionContent struct {
	ContentText string `json:"contentText" validate:"required"`
	ContentLink string `json:"contentLink" validate:"omitempty,url"`
}

// ContentValidation is the outcome of ValidateContent.
type ContentValidation struct {
	Valid  bool
	Errors map[string]string
	// Text is the trimmed content, stored as typed.
	Text string
	// Link is the trimmed link, nil when absent.
	Link *string
}

// DeadlineResult describes lateness at the time of the check.
type DeadlineResult struct {
	IsLate   bool
	Allowed  bool
	Deadline *time.Time
}

// ResubmissionDecision is the outcome of the resubmission policy.
type ResubmissionDecision struct {
	FirstSubmission      bool
	Allowed              bool
	ExistingSubmissionID *uuid.UUID
}

var contentRules = newContentValidator()

func newContentValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateContent checks the submission payload. It has no side effects.
func ValidateContent(input SubmissionContent) ContentValidation {
	text := strings.TrimSpace(input.ContentText)
	link := strings.TrimSpace(input.ContentLink)

	result := ContentValidation{Errors: map[string]string{}}

	if err := contentRules.Struct(SubmissionContent{ContentText: text, ContentLink: link}); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fieldErr := range validationErrors {
				result.Errors[fieldErr.Field()] = contentErrorMessage(fieldErr)
			}
		} else {
			result.Errors["contentText"] = err.Error()
		}
	}

	if link != "" && result.Errors["contentLink"] == "" && !isAbsoluteURL(link) {
		result.Errors["contentLink"] = "content link must be a valid absolute URL"
	}

	result.Valid = len(result.Errors) == 0
	if result.Valid {
		result.Text = text
		if link != "" {
			result.Link = &link
		}
	}

	return result
}

func contentErrorMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Field() {
	case "contentText":
		return "content text is required"
	case "contentLink":
		return "content link must be a valid absolute URL"
	default:
		return fieldErr.Error()
	}
}

func isAbsoluteURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.IsAbs() && parsed.Host != ""
}

// VerifyAuth confirms the claimed identifier is a UUID matching an existing session user.
func VerifyAuth(ctx context.Context, identity IdentityProvider, claimedUserID string) (uuid.UUID, error) {
	userID, err := uuid.Parse(strings.TrimSpace(claimedUserID))
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, newSubmissionError(ErrNotAuthenticated, err)
	}

	if identity == nil {
		return uuid.Nil, newSubmissionError(ErrNotAuthenticated, nil)
	}

	user, err := identity.CurrentUser(ctx)
	if err != nil {
		return uuid.Nil, fetchError("failed to resolve current user", err)
	}
	if user == nil || user.ID != userID {
		return uuid.Nil, newSubmissionError(ErrNotAuthenticated, nil)
	}

	return userID, nil
}

// CheckEnrollment requires an exact (user, course) enrollment row.
func CheckEnrollment(ctx context.Context, enrollments EnrollmentLookup, userID, courseID uuid.UUID) error {
	enrolled, err := enrollments.Exists(ctx, userID, courseID)
	if err != nil {
		return fetchError("failed to check enrollment", err)
	}
	if !enrolled {
		return newSubmissionError(ErrNotEnrolled, nil)
	}
	return nil
}

// VerifyAssignment loads the assignment and confirms it is visible and belongs to courseID.
// Closed assignments pass; submit eligibility rejects them separately.
func VerifyAssignment(ctx context.Context, assignments AssignmentLookup, assignmentID, courseID uuid.UUID) (models.Assignment, error) {
	assignment, err := assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, newSubmissionError(ErrSubmissionTargetAbsent, nil)
		}
		return models.Assignment{}, fetchError("failed to load assignment", err)
	}

	if !assignment.IsVisible() || assignment.CourseID != courseID {
		return models.Assignment{}, newSubmissionError(ErrSubmissionTargetAbsent, nil)
	}

	return assignment, nil
}

// CheckSubmittable rejects assignments that no longer accept work.
func CheckSubmittable(assignment models.Assignment) error {
	if assignment.IsClosed() {
		return newSubmissionError(ErrAssignmentClosed, nil)
	}
	return nil
}

// CheckDeadline compares now to the due date. The boundary is exclusive: a
// submission at exactly the due date is on time.
func CheckDeadline(assignment models.Assignment, now time.Time) (DeadlineResult, error) {
	result := DeadlineResult{Allowed: true, Deadline: assignment.DueDate}
	if !assignment.IsPastDue(now) {
		return result, nil
	}

	result.IsLate = true
	if !assignment.AllowLateSubmission {
		result.Allowed = false
		return result, newSubmissionError(ErrDeadlineExceeded, nil)
	}

	return result, nil
}

// DecideResubmission applies the resubmission policy to an optional prior submission.
// A submission returned for rework is always resubmittable.
func DecideResubmission(existing *models.Submission, allowResubmission bool) (ResubmissionDecision, error) {
	if existing == nil {
		return ResubmissionDecision{FirstSubmission: true, Allowed: true}, nil
	}

	existingID := existing.ID
	decision := ResubmissionDecision{ExistingSubmissionID: &existingID}
	if !allowResubmission && existing.Status != models.SubmissionStatusResubmissionRequired {
		err := newSubmissionError(ErrResubmissionNotAllowed, nil)
		err.ExistingSubmissionID = &existingID
		return decision, err
	}

	decision.Allowed = true
	return decision, nil
}

// CheckResubmission looks up any prior submission and applies DecideResubmission.
func CheckResubmission(ctx context.Context, submissions SubmissionLookup, assignmentID, userID uuid.UUID, allowResubmission bool) (ResubmissionDecision, *models.Submission, error) {
	existing, err := findExistingSubmission(ctx, submissions, assignmentID, userID)
	if err != nil {
		return ResubmissionDecision{}, nil, err
	}

	decision, err := DecideResubmission(existing, allowResubmission)
	return decision, existing, err
}

func findExistingSubmission(ctx context.Context, submissions SubmissionLookup, assignmentID, userID uuid.UUID) (*models.Submission, error) {
	existing, err := submissions.GetByAssignmentAndUser(ctx, assignmentID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fetchError("failed to load existing submission", err)
	}
	return &existing, nil
}
