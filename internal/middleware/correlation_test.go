package middleware_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/session"
)

func newCorrelationApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/ctx", func(c *fiber.Ctx) error {
		return c.SendString(session.CorrelationID(c.UserContext()))
	})
	return app
}

func correlationOf(t *testing.T, app *fiber.App, headers map[string]string) (string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/ctx", nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.Header.Get(middleware.CorrelationHeader), string(body)
}

func TestCorrelationIDBindsRequestContext(t *testing.T) {
	header, bound := correlationOf(t, newCorrelationApp(), map[string]string{"X-Correlation-ID": " submit-7f3a "})
	require.Equal(t, "submit-7f3a", header)
	require.Equal(t, header, bound)
}

func TestCorrelationIDFallsBackToRequestID(t *testing.T) {
	header, _ := correlationOf(t, newCorrelationApp(), map[string]string{"X-Request-ID": "edge:1234"})
	require.Equal(t, "edge:1234", header)
}

func TestCorrelationIDReplacesMalformedValues(t *testing.T) {
	for _, raw := range []string{"bad id with spaces", "inject\"quote", strings.Repeat("a", 65)} {
		header, bound := correlationOf(t, newCorrelationApp(), map[string]string{"X-Correlation-ID": raw})
		require.NotEqual(t, raw, header)
		_, err := uuid.Parse(header)
		require.NoError(t, err, raw)
		require.Equal(t, header, bound)
	}
}
