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

// GradingHandler wires instructor review endpoints.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// RegisterAssignmentRoutes attaches the submission listing to the assignments group.
func (h *GradingHandler) RegisterAssignmentRoutes(router fiber.Router) {
	router.Get("/:assignmentId/submissions", middleware.WithAuth(h.list, middleware.AuthOptions{Role: middleware.AuthRoleInstructor}))
}

// Register attaches grading endpoints to the submissions group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("/:submissionId/grade", middleware.WithAuth(h.grade, middleware.AuthOptions{Role: middleware.AuthRoleInstructor}))
}

func (h *GradingHandler) list(c *fiber.Ctx) error {
	assignmentID, err := parseUUIDParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.ListSubmissions(c.UserContext(), assignmentID, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Grade(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "course not found")
	case errors.Is(err, service.ErrCourseForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrScoreRequired):
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
	case isValidationError(err):
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "VALIDATION_FAILED", "invalid grading payload", validationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to process grading request")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
