package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	version string
	engine  string
	started time.Time
}

func NewHealthHandler(version, engine string) *HealthHandler {
	return &HealthHandler{
		version: version,
		engine:  engine,
		started: time.Now(),
	}
}

// HandleHealth handles GET /health
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, fiber.Map{
		"status":         "healthy",
		"version":        h.version,
		"engine":         h.engine,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
