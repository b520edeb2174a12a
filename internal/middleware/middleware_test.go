package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/ratelimit"
)

const testSecret = "test-secret"

func newApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(apperrors.HTTPStatus(err)).SendString(err.Error())
		},
	})
}

func echoUser(c *fiber.Ctx) error {
	return c.SendString(UserID(c))
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestAuth(t *testing.T) {
	app := newApp()
	app.Get("/me", NewAuthMiddleware(testSecret, "showcase"), echoUser)

	valid, err := IssueToken(testSecret, "showcase", "user-1", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, "showcase", "user-1", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	require.NoError(t, err)
	otherIssuer, err := IssueToken(testSecret, "someone-else", "user-1", jwt.RegisteredClaims{})
	require.NoError(t, err)
	wrongSecret, err := IssueToken("nope", "showcase", "user-1", jwt.RegisteredClaims{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"bearer token", "Bearer " + valid, http.StatusOK},
		{"bare token", valid, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, http.StatusOK},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + otherIssuer, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + wrongSecret, http.StatusUnauthorized},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusOK {
				assert.Equal(t, "user-1", body(t, resp))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	app := newApp()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-123", resp.Header.Get(HeaderRequestID))
	assert.Equal(t, "req-123", body(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	generated := resp.Header.Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, body(t, resp))
}

func TestRateLimit(t *testing.T) {
	registry := ratelimit.NewRegistry(ratelimit.Config{Limit: 1, Window: time.Minute, Burst: 1})

	app := newApp()
	app.Use(func(c *fiber.Ctx) error {
		if user := c.Get("X-Test-User"); user != "" {
			c.Locals(userIDKey, user)
		}
		return c.Next()
	})
	app.Post("/upload", RateLimit(registry, "upload"), echoUser)

	send := func(user string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.Header.Set("X-Test-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	first := send("alice")
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "1", first.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header.Get("X-RateLimit-Remaining"))

	second := send("alice")
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Contains(t, body(t, second), "upload")

	// Quota is per user.
	assert.Equal(t, http.StatusOK, send("bob").StatusCode)

	allowed, _ := registry.Allow("upload:alice")
	assert.False(t, allowed)
}
