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
	// ErrCourseNotFound indicates the course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrCourseNotOpen indicates the course does not accept enrollments.
	ErrCourseNotOpen = errors.New("course is not open for enrollment")
	// ErrAlreadyEnrolled indicates the user already holds an enrollment for the course.
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	// ErrEnrollmentNotFound indicates there is no enrollment to cancel.
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrCourseForbidden indicates the actor does not manage the course.
	ErrCourseForbidden = errors.New("course is managed by another instructor")
)

// CourseService exposes the course catalog and enrollment use cases.
type CourseService interface {
	Create(ctx context.Context, payload dto.CourseCreateRequest, actor ActivityActor) (dto.CourseResponse, error)
	ListPublished(ctx context.Context, search string) ([]dto.CourseResponse, error)
	ListEnrollments(ctx context.Context, actor ActivityActor) ([]dto.EnrollmentResponse, error)
	Enroll(ctx context.Context, courseID uuid.UUID, actor ActivityActor) (dto.EnrollmentResponse, error)
	Unenroll(ctx context.Context, courseID uuid.UUID, actor ActivityActor) error
}

type courseService struct {
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	policy      *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCourseService constructs the course service.
func NewCourseService(courses repository.CourseRepository, enrollments repository.EnrollmentRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) CourseService {
	return &courseService{
		courses:     courses,
		enrollments: enrollments,
		validator:   validate,
		activity:    activity,
		policy:      bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "course_service").Logger(),
		now:         time.Now,
	}
}

func (s *courseService) Create(ctx context.Context, payload dto.CourseCreateRequest, actor ActivityActor) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		Title:        strings.TrimSpace(payload.Title),
		Description:  strings.TrimSpace(s.policy.Sanitize(payload.Description)),
		Status:       models.CourseStatusDraft,
		InstructorID: actor.ID,
	}
	if payload.Publish {
		course.Status = models.CourseStatusPublished
	}

	if err := s.courses.Create(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	s.record(ctx, actor, "course.created", course.ID, map[string]interface{}{
		"course_id": course.ID.String(),
		"status":    course.Status,
	})

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) ListPublished(ctx context.Context, search string) ([]dto.CourseResponse, error) {
	courses, err := s.courses.List(ctx, repository.CourseFilter{
		Status: models.CourseStatusPublished,
		Search: search,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewCourseResponseSlice(courses), nil
}

func (s *courseService) ListEnrollments(ctx context.Context, actor ActivityActor) ([]dto.EnrollmentResponse, error) {
	enrollments, err := s.enrollments.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewEnrollmentResponseSlice(enrollments), nil
}

func (s *courseService) Enroll(ctx context.Context, courseID uuid.UUID, actor ActivityActor) (dto.EnrollmentResponse, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrCourseNotFound
		}
		return dto.EnrollmentResponse{}, err
	}
	if !course.IsPublished() {
		return dto.EnrollmentResponse{}, ErrCourseNotOpen
	}

	enrollment := models.Enrollment{
		UserID:     actor.ID,
		CourseID:   course.ID,
		EnrolledAt: s.now().UTC(),
	}
	if err := s.enrollments.Create(ctx, &enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.EnrollmentResponse{}, ErrAlreadyEnrolled
		}
		return dto.EnrollmentResponse{}, err
	}

	s.logger.Info().
		Str("course_id", course.ID.String()).
		Str("user_id", actor.ID.String()).
		Msg("user enrolled")
	s.record(ctx, actor, "enrollment.created", course.ID, map[string]interface{}{
		"course_id": course.ID.String(),
	})

	return dto.NewEnrollmentResponse(enrollment), nil
}

func (s *courseService) Unenroll(ctx context.Context, courseID uuid.UUID, actor ActivityActor) error {
	if err := s.enrollments.Delete(ctx, actor.ID, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEnrollmentNotFound
		}
		return err
	}

	s.record(ctx, actor, "enrollment.cancelled", courseID, map[string]interface{}{
		"course_id": courseID.String(),
	})
	return nil
}

func (s *courseService) record(ctx context.Context, actor ActivityActor, action string, courseID uuid.UUID, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	entityID := courseID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "course",
		EntityID:   &entityID,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}

// canManageCourse reports whether actor may administer course content.
func canManageCourse(course models.Course, actor ActivityActor) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	return actor.Role == models.RoleTeacher && course.InstructorID == actor.ID
}
