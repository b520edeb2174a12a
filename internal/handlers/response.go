// Package handlers exposes the HTTP API. Every response, success or error,
// uses the same envelope.
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MLSAKIIT/Showcase/internal/middleware"
)

const versionKey = "apiVersion"

type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Version   string    `json:"version"`
}

type ErrorBody struct {
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	Field     string         `json:"field,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    Meta       `json:"meta"`
}

// Version stamps the API version into every envelope rendered for the request.
func Version(version string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(versionKey, version)
		return c.Next()
	}
}

func meta(c *fiber.Ctx) Meta {
	version, _ := c.Locals(versionKey).(string)
	return Meta{
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(c),
		Version:   version,
	}
}

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Data: data, Meta: meta(c)})
}

func respondError(c *fiber.Ctx, status int, body ErrorBody) error {
	return c.Status(status).JSON(Envelope{Success: false, Error: &body, Meta: meta(c)})
}
