package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgError "github.com/eduzayn/educhat/pkg/error"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler fiber.Handler) (int, utils.ResponseData) {
	t.Helper()
	app := fiber.New()
	app.Use(Recovery())
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body utils.ResponseData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestRecovery_TypedError(t *testing.T) {
	status, body := serve(t, func(c *fiber.Ctx) error {
		panic(fmt.Errorf("send: %w", pkgError.ValidationError("message: cannot be blank.")))
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Equal(t, "message: cannot be blank.", body.Message)
}

func TestRecovery_UnknownPanicHidesDetails(t *testing.T) {
	status, body := serve(t, func(c *fiber.Ctx) error {
		panic(errors.New("pq: connection refused"))
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "erro interno do servidor", body.Message)

	status, body = serve(t, func(c *fiber.Ctx) error {
		var m map[string]int
		m["x"]++
		return nil
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Code)
}
