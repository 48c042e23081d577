package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/utils"
)

func TestSendSuccessDefaults(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "", map[string]string{"hello": "world"})
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Data    map[string]string `json:"data"`
	}
	decode(t, resp, &payload)

	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.Equal(t, "world", payload.Data["hello"])
}

func TestSendErrorWithCodeIncludesDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		details := map[string]string{"contentText": "content text is required"}
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "VALIDATION_FAILED", "invalid payload", details)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload utils.ErrorResponse
	var raw struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	body := readBody(t, resp)
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, json.Unmarshal(body, &raw))

	require.Equal(t, "VALIDATION_FAILED", payload.Error.Code)
	require.Equal(t, "invalid payload", payload.Error.Message)
	require.Equal(t, "content text is required", raw.Error.Details["contentText"])
}

func TestSendErrorDerivesCodeFromStatus(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusNotFound, "")
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var payload utils.ErrorResponse
	decode(t, resp, &payload)
	require.Equal(t, "NOT_FOUND", payload.Error.Code)
	require.Equal(t, "error", payload.Error.Message)
	require.Nil(t, payload.Error.Details)
}

func TestStatusCode(t *testing.T) {
	require.Equal(t, "TOO_MANY_REQUESTS", utils.StatusCode(fiber.StatusTooManyRequests))
	require.Equal(t, "INTERNAL_SERVER_ERROR", utils.StatusCode(fiber.StatusInternalServerError))
	require.Equal(t, "ERROR", utils.StatusCode(799))
}

func performRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	var buf json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&buf))
	return buf
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
