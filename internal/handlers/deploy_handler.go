package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/services"
)

type DeployHandler struct {
	deploy services.DeployService
}

func NewDeployHandler(deploy services.DeployService) *DeployHandler {
	return &DeployHandler{deploy: deploy}
}

// HandleGitHubCallback handles POST /deploy/github/callback
func (h *DeployHandler) HandleGitHubCallback(c *fiber.Ctx) error {
	var req models.DeployCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("Invalid request payload")
	}

	resp, err := h.deploy.HandleCallback(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, resp)
}

// HandleTrigger handles POST /deploy/trigger
func (h *DeployHandler) HandleTrigger(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusNotImplemented, "Deployment trigger is not implemented")
}
