package handler

import (
	_ "embed"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

//go:embed schemas/submit_assignment.schema.json
var submitAssignmentSchemaSource string

var submitAssignmentSchema = jsonschema.MustCompileString("submit_assignment.schema.json", submitAssignmentSchemaSource)

// SubmissionHandler manages the learner submit and status endpoints.
type SubmissionHandler struct {
	service     service.SubmissionService
	logger      zerolog.Logger
	submitGuard fiber.Handler
}

// NewSubmissionHandler builds a submission handler instance. submitGuard, when
// non-nil, runs before the submit route (typically a rate limiter).
func NewSubmissionHandler(service service.SubmissionService, submitGuard fiber.Handler, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:     service,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
		submitGuard: submitGuard,
	}
}

// Register attaches the routes to the assignments router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	submit := []fiber.Handler{}
	if h.submitGuard != nil {
		submit = append(submit, h.submitGuard)
	}
	submit = append(submit, middleware.WithAuth(h.submit, middleware.AuthOptions{RequireUser: true}))

	router.Post("/:assignmentId/submit", submit...)
	router.Get("/:assignmentId/my-submission", middleware.WithAuth(h.status, middleware.AuthOptions{RequireUser: true}))
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	assignmentID, err := parseUUIDParam(c, "assignmentId")
	if err != nil {
		return h.handleError(c, service.NewMalformedRequestError(err.Error(), nil))
	}
	courseID, err := parseUUIDQuery(c, "courseId")
	if err != nil {
		return h.handleError(c, service.NewMalformedRequestError(err.Error(), nil))
	}

	payload, err := decodeSubmitBody(c.Body())
	if err != nil {
		return h.handleError(c, err)
	}

	result, err := h.service.Submit(c.UserContext(), dto.SubmitCommand{
		UserID:       userIDStringFromContext(c),
		AssignmentID: assignmentID,
		CourseID:     courseID,
		ContentText:  payload.ContentText,
		ContentLink:  payload.ContentLink,
	})
	if err != nil {
		return h.handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *SubmissionHandler) status(c *fiber.Ctx) error {
	assignmentID, err := parseUUIDParam(c, "assignmentId")
	if err != nil {
		return h.handleError(c, service.NewMalformedRequestError(err.Error(), nil))
	}
	courseID, err := parseUUIDQuery(c, "courseId")
	if err != nil {
		return h.handleError(c, service.NewMalformedRequestError(err.Error(), nil))
	}

	status, err := h.service.Status(c.UserContext(), dto.SubmissionStatusQuery{
		UserID:       userIDStringFromContext(c),
		AssignmentID: assignmentID,
		CourseID:     courseID,
	})
	if err != nil {
		return h.handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

// decodeSubmitBody checks the body shape against the embedded schema before binding it.
func decodeSubmitBody(body []byte) (dto.SubmitAssignmentRequest, error) {
	var document interface{}
	if err := json.Unmarshal(body, &document); err != nil {
		return dto.SubmitAssignmentRequest{}, service.NewMalformedRequestError("request body must be a JSON object", nil)
	}

	if err := submitAssignmentSchema.Validate(document); err != nil {
		return dto.SubmitAssignmentRequest{}, service.NewMalformedRequestError("request body does not match the expected shape", schemaViolations(err))
	}

	var payload dto.SubmitAssignmentRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return dto.SubmitAssignmentRequest{}, service.NewMalformedRequestError("invalid request body", nil)
	}
	return payload, nil
}

func schemaViolations(err error) map[string]string {
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return nil
	}
	violations := map[string]string{}
	collectViolations(validationErr, violations)
	return violations
}

func collectViolations(err *jsonschema.ValidationError, into map[string]string) {
	if len(err.Causes) == 0 {
		field := strings.TrimPrefix(err.InstanceLocation, "/")
		if field == "" {
			field = "body"
		}
		into[field] = err.Message
		return
	}
	for _, cause := range err.Causes {
		collectViolations(cause, into)
	}
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var submissionErr *service.SubmissionError
	if !errors.As(err, &submissionErr) {
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	status := submissionErrorStatus(submissionErr)
	if status >= fiber.StatusInternalServerError {
		requestLogger(h.logger, c).Error().
			Err(submissionErr.Err).
			Str("step", string(submissionErr.Step)).
			Msg("submission request failed")
	}

	return utils.SendErrorWithCode(c, status, submissionErr.Code, submissionErr.Message, submissionErrorDetails(submissionErr))
}

func submissionErrorStatus(err *service.SubmissionError) int {
	switch err.Kind {
	case service.KindUnauthorized:
		if err.Code == service.CodeNotEnrolled {
			return fiber.StatusForbidden
		}
		return fiber.StatusUnauthorized
	case service.KindNotFound:
		return fiber.StatusNotFound
	case service.KindConflict:
		return fiber.StatusConflict
	case service.KindFetchError:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadRequest
	}
}

func submissionErrorDetails(err *service.SubmissionError) interface{} {
	details := map[string]interface{}{}
	for field, message := range err.Fields {
		details[field] = message
	}
	if err.ExistingSubmissionID != nil {
		details["existingSubmissionId"] = err.ExistingSubmissionID.String()
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
