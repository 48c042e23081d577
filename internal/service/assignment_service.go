package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

var (
	// ErrAssignmentNotFound indicates the requested assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrAssignmentInvalidDueDate indicates the due date is in the past.
	ErrAssignmentInvalidDueDate = errors.New("assignment due date must be in the future")
	// ErrInvalidTransition indicates a lifecycle change outside draft -> published -> closed.
	ErrInvalidTransition = errors.New("assignment status transition not allowed")
	// ErrAssignmentLocked indicates a closed assignment can no longer be edited.
	ErrAssignmentLocked = errors.New("closed assignments cannot be edited")
)

// AssignmentService exposes instructor assignment management and course listings.
type AssignmentService interface {
	Create(ctx context.Context, courseID uuid.UUID, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id uuid.UUID, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Publish(ctx context.Context, id uuid.UUID, actor ActivityActor) (dto.AssignmentResponse, error)
	Close(ctx context.Context, id uuid.UUID, actor ActivityActor) (dto.AssignmentResponse, error)
	ListForCourse(ctx context.Context, courseID uuid.UUID, actor ActivityActor) ([]dto.AssignmentResponse, error)
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	policy      *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(assignments repository.AssignmentRepository, courses repository.CourseRepository, enrollments repository.EnrollmentRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		assignments: assignments,
		courses:     courses,
		enrollments: enrollments,
		validator:   validate,
		activity:    activity,
		policy:      bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentService) Create(ctx context.Context, courseID uuid.UUID, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	course, err := s.managedCourse(ctx, courseID, actor)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment := models.Assignment{
		CourseID:            course.ID,
		Title:               strings.TrimSpace(payload.Title),
		Description:         s.sanitizeDescription(payload.Description),
		AllowLateSubmission: payload.AllowLateSubmission,
		AllowResubmission:   payload.AllowResubmission,
		Status:              models.AssignmentStatusDraft,
	}
	if payload.Weight != nil {
		assignment.Weight = *payload.Weight
	}
	if payload.DueDate != nil {
		dueDate, err := s.parseDueDate(*payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		assignment.DueDate = &dueDate
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.record(ctx, actor, "assignment.created", assignment, map[string]interface{}{
		"course_id": course.ID.String(),
		"due_date":  assignment.DueDate,
	})

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, id uuid.UUID, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.managedAssignment(ctx, id, actor)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if assignment.IsClosed() {
		return dto.AssignmentResponse{}, ErrAssignmentLocked
	}

	changedFields := make([]string, 0)

	if payload.Title != nil {
		assignment.Title = strings.TrimSpace(*payload.Title)
		changedFields = append(changedFields, "title")
	}
	if payload.Description != nil {
		assignment.Description = s.sanitizeDescription(*payload.Description)
		changedFields = append(changedFields, "description")
	}
	switch {
	case payload.ClearDueDate:
		assignment.DueDate = nil
		changedFields = append(changedFields, "due_date")
	case payload.DueDate != nil:
		dueDate, err := s.parseDueDate(*payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		assignment.DueDate = &dueDate
		changedFields = append(changedFields, "due_date")
	}
	if payload.Weight != nil {
		assignment.Weight = *payload.Weight
		changedFields = append(changedFields, "weight")
	}
	if payload.AllowLateSubmission != nil {
		assignment.AllowLateSubmission = *payload.AllowLateSubmission
		changedFields = append(changedFields, "allow_late_submission")
	}
	if payload.AllowResubmission != nil {
		assignment.AllowResubmission = *payload.AllowResubmission
		changedFields = append(changedFields, "allow_resubmission")
	}

	if len(changedFields) == 0 {
		return dto.NewAssignmentResponse(assignment), nil
	}

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.record(ctx, actor, "assignment.updated", assignment, map[string]interface{}{
		"fields": changedFields,
	})

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Publish(ctx context.Context, id uuid.UUID, actor ActivityActor) (dto.AssignmentResponse, error) {
	return s.transition(ctx, id, models.AssignmentStatusPublished, actor)
}

func (s *assignmentService) Close(ctx context.Context, id uuid.UUID, actor ActivityActor) (dto.AssignmentResponse, error) {
	return s.transition(ctx, id, models.AssignmentStatusClosed, actor)
}

func (s *assignmentService) transition(ctx context.Context, id uuid.UUID, next string, actor ActivityActor) (dto.AssignmentResponse, error) {
	assignment, err := s.managedAssignment(ctx, id, actor)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !assignment.CanTransitionTo(next) {
		return dto.AssignmentResponse{}, ErrInvalidTransition
	}

	previous := assignment.Status
	assignment.Status = next
	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().
		Str("assignment_id", assignment.ID.String()).
		Str("from", previous).
		Str("to", next).
		Msg("assignment status changed")
	s.record(ctx, actor, "assignment."+next, assignment, map[string]interface{}{
		"from": previous,
		"to":   next,
	})

	return dto.NewAssignmentResponse(assignment), nil
}

// ListForCourse returns every assignment to the course's instructors and only
// published or closed ones to enrolled learners.
func (s *assignmentService) ListForCourse(ctx context.Context, courseID uuid.UUID, actor ActivityActor) ([]dto.AssignmentResponse, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	filter := repository.AssignmentFilter{CourseID: course.ID, Sort: "due_date"}
	if !canManageCourse(course, actor) {
		enrolled, err := s.enrollments.Exists(ctx, actor.ID, course.ID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, ErrNotEnrolled
		}
		filter.Statuses = []string{models.AssignmentStatusPublished, models.AssignmentStatusClosed}
	}

	assignments, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) managedCourse(ctx context.Context, courseID uuid.UUID, actor ActivityActor) (models.Course, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	if !canManageCourse(course, actor) {
		return models.Course{}, ErrCourseForbidden
	}
	return course, nil
}

func (s *assignmentService) managedAssignment(ctx context.Context, id uuid.UUID, actor ActivityActor) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	if _, err := s.managedCourse(ctx, assignment.CourseID, actor); err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

// sanitizeDescription strips unsafe markup; descriptions are rendered as HTML.
func (s *assignmentService) sanitizeDescription(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

func (s *assignmentService) parseDueDate(raw string) (time.Time, error) {
	dueDate, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	if dueDate.Before(s.now()) {
		return time.Time{}, ErrAssignmentInvalidDueDate
	}
	return dueDate.UTC(), nil
}

func (s *assignmentService) record(ctx context.Context, actor ActivityActor, action string, assignment models.Assignment, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	metadata["assignment_id"] = assignment.ID.String()
	entityID := assignment.ID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "assignment",
		EntityID:   &entityID,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}
