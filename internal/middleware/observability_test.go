package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/session"
)

func TestObservabilityLogsSubmissionContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	userID := uuid.New()
	assignmentID := uuid.New()

	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Use(middleware.Observability(logger))
	app.Post("/api/assignments/:assignmentId/submit", func(c *fiber.Ctx) error {
		c.SetUserContext(session.WithUser(c.UserContext(), session.User{ID: userID, Role: "student"}))
		return c.SendStatus(fiber.StatusTooManyRequests)
	})
	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(fiber.MethodPost, "/api/assignments/"+assignmentID.String()+"/submit", nil)
	req.Header.Set("X-Correlation-ID", "req-obs-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "request throttled", entry["message"])
	require.Equal(t, "/api/assignments/:assignmentId/submit", entry["route"])
	require.Equal(t, assignmentID.String(), entry["assignment_id"])
	require.Equal(t, userID.String(), entry["user_id"])
	require.Equal(t, "req-obs-1", entry["correlation_id"])
	require.NotContains(t, entry, "course_id")

	buf.Reset()
	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Zero(t, buf.Len())
}
