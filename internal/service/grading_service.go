package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

var (
	// ErrSubmissionNotFound indicates the submission was not located.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrScoreRequired indicates a graded status was requested without a score.
	ErrScoreRequired = errors.New("score is required when grading a submission")
)

// GradingService encapsulates instructor review of submissions.
type GradingService interface {
	ListSubmissions(ctx context.Context, assignmentID uuid.UUID, actor ActivityActor) ([]dto.SubmissionResponse, error)
	Grade(ctx context.Context, submissionID uuid.UUID, payload dto.GradeSubmissionRequest, actor ActivityActor) (dto.GradedSubmissionResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	courses     repository.CourseRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(submissions repository.SubmissionRepository, assignments repository.AssignmentRepository, courses repository.CourseRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) GradingService {
	return &gradingService{
		submissions: submissions,
		assignments: assignments,
		courses:     courses,
		validator:   validate,
		activity:    activity,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) ListSubmissions(ctx context.Context, assignmentID uuid.UUID, actor ActivityActor) ([]dto.SubmissionResponse, error) {
	if _, err := s.managedAssignment(ctx, assignmentID, actor); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{AssignmentID: &assignmentID})
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *gradingService) Grade(ctx context.Context, submissionID uuid.UUID, payload dto.GradeSubmissionRequest, actor ActivityActor) (dto.GradedSubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.update")
	span.SetAttributes(
		attribute.String("grading.submission_id", submissionID.String()),
		attribute.String("grading.actor_id", actor.ID.String()),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradedSubmissionResponse{}, err
	}
	if payload.Status == models.SubmissionStatusGraded && payload.Score == nil {
		span.SetStatus(codes.Error, "score_required")
		return dto.GradedSubmissionResponse{}, ErrScoreRequired
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.GradedSubmissionResponse{}, ErrSubmissionNotFound
		}
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.GradedSubmissionResponse{}, err
	}

	if _, err := s.managedAssignment(ctx, submission.AssignmentID, actor); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment_access_denied")
		return dto.GradedSubmissionResponse{}, err
	}

	feedback := strings.TrimSpace(payload.Feedback)
	if isRepeatedGrade(submission, payload, feedback, actor) {
		span.SetAttributes(attribute.Bool("grading.idempotent", true))
		return s.withHistory(ctx, submission)
	}

	gradedAt := s.now().UTC()
	gradedBy := actor.ID
	fields := map[string]interface{}{
		"status":     payload.Status,
		"score":      payload.Score,
		"feedback":   feedback,
		"graded_by":  gradedBy,
		"graded_at":  gradedAt,
		"updated_at": gradedAt,
	}
	if err := s.submissions.UpdateFields(ctx, submission.ID, fields); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return dto.GradedSubmissionResponse{}, err
	}

	history := models.SubmissionGradeHistory{
		SubmissionID: submission.ID,
		Status:       payload.Status,
		Score:        payload.Score,
		Feedback:     feedback,
		GradedBy:     gradedBy,
		GradedAt:     gradedAt,
	}
	if err := s.submissions.CreateHistory(ctx, &history); err != nil {
		s.logger.Warn().Err(err).Str("submission_id", submission.ID.String()).Msg("failed to persist grading history")
		span.RecordError(err)
	}

	if s.activity != nil {
		metadata := map[string]interface{}{
			"submission_id": submission.ID.String(),
			"assignment_id": submission.AssignmentID.String(),
			"user_id":       submission.UserID.String(),
			"status":        payload.Status,
		}
		if payload.Score != nil {
			metadata["score"] = *payload.Score
		}
		entityID := submission.ID
		if _, err := s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "submission." + payload.Status,
			EntityType: "submission",
			EntityID:   &entityID,
			Metadata:   metadata,
		}); err != nil {
			s.logger.Warn().Err(err).Str("submission_id", submission.ID.String()).Msg("failed to record grading activity")
		}
	}

	observability.GradingActions().WithLabelValues(payload.Status).Inc()
	span.SetAttributes(attribute.String("grading.status", payload.Status))
	if payload.Score != nil {
		span.SetAttributes(attribute.Float64("grading.score", *payload.Score))
	}

	updated, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.GradedSubmissionResponse{}, err
	}
	return s.withHistory(ctx, updated)
}

func (s *gradingService) withHistory(ctx context.Context, submission models.Submission) (dto.GradedSubmissionResponse, error) {
	history, err := s.submissions.ListHistory(ctx, submission.ID)
	if err != nil {
		return dto.GradedSubmissionResponse{}, err
	}
	return dto.NewGradedSubmissionResponse(submission, history), nil
}

func (s *gradingService) managedAssignment(ctx context.Context, assignmentID uuid.UUID, actor ActivityActor) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}

	course, err := s.courses.GetByID(ctx, assignment.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrCourseNotFound
		}
		return models.Assignment{}, err
	}
	if !canManageCourse(course, actor) {
		return models.Assignment{}, ErrCourseForbidden
	}
	return assignment, nil
}

// isRepeatedGrade reports whether the same grader is re-sending an identical grade.
func isRepeatedGrade(submission models.Submission, payload dto.GradeSubmissionRequest, feedback string, actor ActivityActor) bool {
	if submission.Status != payload.Status || submission.GradedBy == nil || *submission.GradedBy != actor.ID {
		return false
	}

	currentFeedback := ""
	if submission.Feedback != nil {
		currentFeedback = strings.TrimSpace(*submission.Feedback)
	}
	if currentFeedback != feedback {
		return false
	}

	switch {
	case submission.Score == nil && payload.Score == nil:
		return true
	case submission.Score == nil || payload.Score == nil:
		return false
	default:
		return math.Abs(*submission.Score-*payload.Score) < 1e-6
	}
}
