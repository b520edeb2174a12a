package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/middleware"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/services"
)

type CustomizeHandler struct {
	customizer services.CustomizerService
}

func NewCustomizeHandler(customizer services.CustomizerService) *CustomizeHandler {
	return &CustomizeHandler{customizer: customizer}
}

// HandleCustomize handles POST /portfolio/customize
func (h *CustomizeHandler) HandleCustomize(c *fiber.Ctx) error {
	var req models.CustomizationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("Invalid request payload")
	}

	result, err := h.customizer.Customize(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, result)
}

// HandleChat handles POST /portfolio/chat
func (h *CustomizeHandler) HandleChat(c *fiber.Ctx) error {
	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("Invalid request payload")
	}

	result, err := h.customizer.Chat(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, result)
}
