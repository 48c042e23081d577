package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// CourseHandler wires the course catalog and enrollment routes.
type CourseHandler struct {
	service service.CourseService
	logger  zerolog.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(service service.CourseService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		logger:  logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches course endpoints to the router group.
func (h *CourseHandler) Register(router fiber.Router) {
	router.Get("", middleware.WithAuth(h.list, middleware.AuthOptions{RequireUser: true}))
	router.Post("", middleware.WithAuth(h.create, middleware.AuthOptions{Role: middleware.AuthRoleInstructor}))
	router.Get("/enrollments", middleware.WithAuth(h.enrollments, middleware.AuthOptions{RequireUser: true}))
	router.Post("/:courseId/enroll", middleware.WithAuth(h.enroll, middleware.AuthOptions{RequireUser: true}))
	router.Delete("/:courseId/enroll", middleware.WithAuth(h.unenroll, middleware.AuthOptions{RequireUser: true}))
}

func (h *CourseHandler) list(c *fiber.Ctx) error {
	courses, err := h.service.ListPublished(c.UserContext(), c.Query("search"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "courses retrieved", courses)
}

func (h *CourseHandler) enrollments(c *fiber.Ctx) error {
	enrollments, err := h.service.ListEnrollments(c.UserContext(), activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "enrollments retrieved", enrollments)
}

func (h *CourseHandler) create(c *fiber.Ctx) error {
	var payload dto.CourseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.Create(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CourseHandler) enroll(c *fiber.Ctx) error {
	courseID, err := parseUUIDParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	enrollment, err := h.service.Enroll(c.UserContext(), courseID, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "enrolled", enrollment)
}

func (h *CourseHandler) unenroll(c *fiber.Ctx) error {
	courseID, err := parseUUIDParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Unenroll(c.UserContext(), courseID, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "enrollment cancelled", nil)
}

func (h *CourseHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "course not found")
	case errors.Is(err, service.ErrEnrollmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "enrollment not found")
	case errors.Is(err, service.ErrAlreadyEnrolled):
		return utils.SendErrorWithCode(c, fiber.StatusConflict, "ALREADY_ENROLLED", err.Error(), nil)
	case errors.Is(err, service.ErrCourseNotOpen):
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "COURSE_NOT_OPEN", err.Error(), nil)
	case isValidationError(err):
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "VALIDATION_FAILED", "invalid course payload", validationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to process course request")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
