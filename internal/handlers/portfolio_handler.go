package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/middleware"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/services"
	"github.com/MLSAKIIT/Showcase/internal/toolkit"
)

type PortfolioHandler struct {
	jobs       services.JobService
	portfolios services.PortfolioService
	registry   *toolkit.TemplateRegistry
}

func NewPortfolioHandler(
	jobs services.JobService,
	portfolios services.PortfolioService,
	registry *toolkit.TemplateRegistry,
) *PortfolioHandler {
	return &PortfolioHandler{
		jobs:       jobs,
		portfolios: portfolios,
		registry:   registry,
	}
}

type templateQuery struct {
	Role     string   `json:"role"`
	Features []string `json:"features"`
}

// HandleMine handles GET /portfolio/me
func (h *PortfolioHandler) HandleMine(c *fiber.Ctx) error {
	list, err := h.portfolios.ListMine(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"portfolios": list, "total": len(list)})
}

// HandleListTemplates handles GET and POST /portfolio/templates. A POST body
// may carry a role and a feature list to rank the catalogue against.
func (h *PortfolioHandler) HandleListTemplates(c *fiber.Ctx) error {
	templates := h.registry.ListTemplates()
	data := fiber.Map{"templates": templates, "total": len(templates)}

	if c.Method() == fiber.MethodPost && len(c.Body()) > 0 {
		var q templateQuery
		if err := c.BodyParser(&q); err != nil {
			return apperrors.Validation("Invalid request payload")
		}
		if q.Role != "" {
			data["role_match"] = h.registry.FindTemplatesByRole(q.Role)
		}
		if len(q.Features) > 0 {
			data["feature_matches"] = h.registry.FindTemplatesByFeatures(q.Features)
		}
	}
	return respond(c, fiber.StatusOK, data)
}

// HandleGetTemplate handles GET /portfolio/templates/:template_id
func (h *PortfolioHandler) HandleGetTemplate(c *fiber.Ctx) error {
	tmpl, err := h.registry.GetTemplate(c.Params("template_id"))
	if err != nil {
		return apperrors.NotFound("Template", c.Params("template_id"))
	}
	return respond(c, fiber.StatusOK, tmpl)
}

// HandleFeatures handles GET /portfolio/features
func (h *PortfolioHandler) HandleFeatures(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, fiber.Map{"features": models.Features})
}

// HandleGetPublic handles GET /portfolio/public/:slug
func (h *PortfolioHandler) HandleGetPublic(c *fiber.Ctx) error {
	portfolio, err := h.portfolios.GetPublic(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, portfolio)
}

// HandleSearch handles GET /portfolio/public/search?q=
func (h *PortfolioHandler) HandleSearch(c *fiber.Ctx) error {
	hits, err := h.portfolios.Search(c.UserContext(), c.Query("q"), c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	if hits == nil {
		hits = []services.PortfolioHit{}
	}
	return respond(c, fiber.StatusOK, fiber.Map{"results": hits, "total": len(hits)})
}

// HandleGetByJob handles GET /portfolio/:job_id
func (h *PortfolioHandler) HandleGetByJob(c *fiber.Ctx) error {
	portfolio, err := h.jobs.PortfolioForJob(c.UserContext(), c.Params("job_id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, portfolio)
}

// HandlePublish handles PATCH /portfolio/:job_id/publish
func (h *PortfolioHandler) HandlePublish(c *fiber.Ctx) error {
	var req models.PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("Invalid request payload")
	}

	portfolio, err := h.portfolios.Publish(c.UserContext(), middleware.UserID(c), c.Params("job_id"), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, portfolio)
}

// HandleUpdateContent handles PATCH /portfolio/:job_id/content
func (h *PortfolioHandler) HandleUpdateContent(c *fiber.Ctx) error {
	var req models.ContentUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("Invalid request payload")
	}

	portfolio, err := h.portfolios.UpdateContent(c.UserContext(), middleware.UserID(c), c.Params("job_id"), req.Content)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, portfolio)
}

// HandleRegenerate handles POST /portfolio/:job_id/regenerate
func (h *PortfolioHandler) HandleRegenerate(c *fiber.Ctx) error {
	var req models.RegenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("Invalid request payload")
	}

	portfolio, err := h.portfolios.Regenerate(c.UserContext(), middleware.UserID(c), c.Params("job_id"), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, portfolio)
}

// HandleExport handles GET /portfolio/:job_id/export?format=
func (h *PortfolioHandler) HandleExport(c *fiber.Ctx) error {
	export, err := h.portfolios.Export(c.UserContext(), c.Params("job_id"), c.Query("format"))
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, export.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename))
	return c.Status(fiber.StatusOK).Send(export.Body)
}
