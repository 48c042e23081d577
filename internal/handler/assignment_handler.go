package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// AssignmentHandler wires assignment HTTP routes.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// RegisterCourseRoutes attaches course scoped assignment endpoints.
func (h *AssignmentHandler) RegisterCourseRoutes(router fiber.Router) {
	router.Get("/:courseId/assignments", middleware.WithAuth(h.list, middleware.AuthOptions{RequireUser: true}))
	router.Post("/:courseId/assignments", middleware.WithAuth(h.create, middleware.AuthOptions{Role: middleware.AuthRoleInstructor}))
}

// Register attaches assignment endpoints to the assignments group.
func (h *AssignmentHandler) Register(router fiber.Router) {
	instructor := middleware.AuthOptions{Role: middleware.AuthRoleInstructor}
	router.Patch("/:assignmentId", middleware.WithAuth(h.update, instructor))
	router.Post("/:assignmentId/publish", middleware.WithAuth(h.publish, instructor))
	router.Post("/:assignmentId/close", middleware.WithAuth(h.close, instructor))
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	courseID, err := parseUUIDParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignments, err := h.service.ListForCourse(c.UserContext(), courseID, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	courseID, err := parseUUIDParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assignment, err := h.service.Create(c.UserContext(), courseID, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) update(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assignment, err := h.service.Update(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment updated", assignment)
}

func (h *AssignmentHandler) publish(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Publish(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment published", assignment)
}

func (h *AssignmentHandler) close(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Close(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment closed", assignment)
}

func (h *AssignmentHandler) handleError(c *fiber.Ctx, err error) error {
	var parseErr *time.ParseError
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "course not found")
	case errors.Is(err, service.ErrCourseForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotEnrolled):
		return utils.SendErrorWithCode(c, fiber.StatusForbidden, service.CodeNotEnrolled, "you are not enrolled in this course", nil)
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrAssignmentLocked):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAssignmentInvalidDueDate), errors.As(err, &parseErr):
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "VALIDATION_FAILED", "invalid due date", nil)
	case isValidationError(err):
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "VALIDATION_FAILED", "invalid assignment payload", validationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to process assignment request")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
