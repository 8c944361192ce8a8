package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modeladmin/internal/engine"
	"modeladmin/internal/logger"
)

const secret = "test-secret"

func guardedApp(secret string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler(logger.Nop())})
	app.Get("/data", Middleware(secret), func(c *fiber.Ctx) error {
		if u := GetUser(c); u != nil {
			return c.SendString(u.ID)
		}
		return c.SendString("anonymous")
	})
	app.Get("/admin", Middleware(secret), RequireAdmin(secret), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func get(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req, err := http.NewRequest("GET", path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("u1", []string{"admin"}, secret, time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, []string{"admin"}, claims.Roles)
	assert.NotEmpty(t, claims.ID)

	_, err = ParseAccessToken(token, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateAccessToken("u1", nil, secret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseAccessToken(expired, secret)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	app := guardedApp(secret)
	admin, err := GenerateAccessToken("root", []string{"admin"}, secret, time.Minute)
	require.NoError(t, err)
	viewer, err := GenerateAccessToken("bob", []string{"viewer"}, secret, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 401, get(t, app, "/data", ""))
	assert.Equal(t, 401, get(t, app, "/data", "garbage"))
	assert.Equal(t, 200, get(t, app, "/data", viewer))
	assert.Equal(t, 403, get(t, app, "/admin", viewer))
	assert.Equal(t, 200, get(t, app, "/admin", admin))
}

func TestMiddleware_DisabledWithoutSecret(t *testing.T) {
	app := guardedApp("")
	assert.Equal(t, 200, get(t, app, "/data", ""))
	assert.Equal(t, 200, get(t, app, "/admin", ""))
}
