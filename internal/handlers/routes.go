package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Health    *HealthHandler
	Resume    *ResumeHandler
	Job       *JobHandler
	Portfolio *PortfolioHandler
	Customize *CustomizeHandler
	Chat      *ChatHandler
	Deploy    *DeployHandler
}

// RouteOptions carries the middleware that guards individual routes.
type RouteOptions struct {
	Auth        fiber.Handler
	UploadLimit fiber.Handler
	ChatLimit   fiber.Handler
}

func orNext(h fiber.Handler) fiber.Handler {
	if h == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return h
}

// RegisterRoutes mounts the API on router. Static portfolio paths are
// registered before /portfolio/:job_id so they are not taken for job ids.
func RegisterRoutes(router fiber.Router, h Handlers, opts RouteOptions) {
	auth := orNext(opts.Auth)
	uploadLimit := orNext(opts.UploadLimit)
	chatLimit := orNext(opts.ChatLimit)

	router.Get("/health", h.Health.HandleHealth)

	router.Post("/resumes", auth, uploadLimit, h.Resume.HandleSubmit)

	router.Get("/jobs/:job_id", h.Job.HandleGetStatus)
	router.Get("/jobs/:job_id/ws", RequireUpgrade, websocket.New(h.Job.HandleStream))

	portfolio := router.Group("/portfolio")
	portfolio.Get("/me", auth, h.Portfolio.HandleMine)
	portfolio.Get("/templates", h.Portfolio.HandleListTemplates)
	portfolio.Post("/templates", h.Portfolio.HandleListTemplates)
	portfolio.Get("/templates/:template_id", h.Portfolio.HandleGetTemplate)
	portfolio.Get("/features", h.Portfolio.HandleFeatures)
	portfolio.Get("/public/search", h.Portfolio.HandleSearch)
	portfolio.Get("/public/:slug", h.Portfolio.HandleGetPublic)
	portfolio.Post("/customize", auth, chatLimit, h.Customize.HandleCustomize)
	portfolio.Post("/chat", auth, chatLimit, h.Customize.HandleChat)
	portfolio.Get("/:job_id", h.Portfolio.HandleGetByJob)
	portfolio.Get("/:job_id/export", h.Portfolio.HandleExport)
	portfolio.Patch("/:job_id/publish", auth, h.Portfolio.HandlePublish)
	portfolio.Patch("/:job_id/content", auth, h.Portfolio.HandleUpdateContent)
	portfolio.Post("/:job_id/regenerate", auth, chatLimit, h.Portfolio.HandleRegenerate)

	router.Get("/chat/ws", chatLimit, RequireUpgrade, websocket.New(h.Chat.HandleStream))

	router.Post("/deploy/github/callback", h.Deploy.HandleGitHubCallback)
	router.Post("/deploy/trigger", h.Deploy.HandleTrigger)
}
