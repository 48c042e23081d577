package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/session"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newJWTApp(captured *session.User, localID *string) *fiber.App {
	app := fiber.New()
	app.Use(middleware.JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		if user, ok := session.FromContext(c.UserContext()); ok {
			*captured = user
		}
		if id, ok := c.Locals("user_id").(string); ok {
			*localID = id
		}
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestJWTProtectedBindsSession(t *testing.T) {
	userID := uuid.New()
	var captured session.User
	var localID string
	app := newJWTApp(&captured, &localID)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  userID.String(),
		"role": "Student",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, userID, captured.ID)
	require.Equal(t, "student", captured.Role)
	require.Equal(t, userID.String(), localID)
}

func TestJWTProtectedRejectsNonUUIDSubject(t *testing.T) {
	var captured session.User
	var localID string
	app := newJWTApp(&captured, &localID)

	token := signToken(t, testSecret, jwt.MapClaims{"sub": "42", "role": "student"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsWrongSecret(t *testing.T) {
	var captured session.User
	var localID string
	app := newJWTApp(&captured, &localID)

	token := signToken(t, "other-secret", jwt.MapClaims{"sub": uuid.NewString()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRequiresHeader(t *testing.T) {
	var captured session.User
	var localID string
	app := newJWTApp(&captured, &localID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
