package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/ratelimit"
)

// RateLimit takes one token per request from the bucket of the calling user,
// or of the client address when the route is public. Buckets are namespaced
// by scope so different route groups do not share quota.
func RateLimit(registry *ratelimit.Registry, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := UserID(c)
		if client == "" {
			client = c.IP()
		}

		allowed, info := registry.Allow(scope + ":" + client)
		c.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

		if !allowed {
			return apperrors.RateLimit(scope, info.RetryAfter)
		}
		return c.Next()
	}
}
