package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MLSAKIIT/Showcase/internal/config"
	"github.com/MLSAKIIT/Showcase/internal/events"
	"github.com/MLSAKIIT/Showcase/internal/handlers"
	"github.com/MLSAKIIT/Showcase/internal/metrics"
	"github.com/MLSAKIIT/Showcase/internal/middleware"
	"github.com/MLSAKIIT/Showcase/internal/ratelimit"
	"github.com/MLSAKIIT/Showcase/internal/repositories"
	"github.com/MLSAKIIT/Showcase/internal/services"
	"github.com/MLSAKIIT/Showcase/internal/toolkit"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := newLogger(cfg)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		fatal(log, "❌ Invalid configuration", err)
	}
	log.Info("✅ Config loaded successfully", "env", cfg.Server.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		fatal(log, "❌ Failed to initialize database", err)
	}

	// Initialize repositories
	jobRepo := repositories.NewJobRepository(db)
	portfolioRepo := repositories.NewPortfolioRepository(db)
	log.Info("✅ Repositories initialized successfully")

	// Initialize Gemini AI. Every model call of every job shares these buckets.
	modelLimits := ratelimit.NewRegistry(ratelimit.Config{
		Limit:  cfg.Gemini.RequestsPerMinute,
		Window: time.Minute,
		Burst:  cfg.Gemini.Burst,
	})
	geminiService, err := services.NewGeminiService(ctx, services.GeminiOptions{
		APIKey:         cfg.Gemini.APIKey,
		VisionModel:    cfg.Gemini.VisionModel,
		AgentModel:     cfg.Gemini.AgentModel,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
		Limiter:        modelLimits,
		Logger:         log,
	})
	if err != nil {
		fatal(log, "❌ Failed to initialize Gemini AI", err)
	}
	log.Info("✅ Gemini AI initialized successfully", "model", cfg.Gemini.AgentModel)

	// Initialize services
	storageService, err := services.NewStorageService(ctx, cfg.Storage)
	if err != nil {
		fatal(log, "❌ Failed to initialize storage", err)
	}

	registry, err := toolkit.LoadTemplateRegistry(cfg.Templates.Dir)
	if err != nil {
		fatal(log, "❌ Failed to load template registry", err)
	}
	fileTools, err := toolkit.NewFileTools(cfg.Templates.Dir, cfg.Templates.Dir, cfg.Templates.OutputDir)
	if err != nil {
		fatal(log, "❌ Failed to prepare output directory", err)
	}

	validator, err := services.NewContentValidator()
	if err != nil {
		fatal(log, "❌ Failed to compile content schema", err)
	}

	prompts := services.NewPromptBuilder()
	generator := services.NewGeneratorService(geminiService, prompts, registry, validator, cfg.Templates.TopSkills, log)
	log.Info("✅ Services initialized successfully")

	// Initialize event bus
	bus := events.NewMemoryBus()
	if cfg.Redis.URL != "" {
		bus, err = events.NewRedisBus(ctx, cfg.Redis.URL, log)
		if err != nil {
			fatal(log, "❌ Failed to connect to Redis", err)
		}
		log.Info("✅ Redis event bus connected")
	}

	// Initialize Qdrant
	index, err := services.NewPortfolioIndex(cfg.Qdrant, geminiService, log)
	if err != nil {
		fatal(log, "❌ Failed to initialize Qdrant", err)
	}
	if err := index.EnsureCollection(ctx); err != nil {
		fatal(log, "❌ Failed to initialize Qdrant collection", err)
	}

	// Initialize pipeline and worker
	runner := services.NewPipelineRunner(
		jobRepo,
		storageService,
		services.ParsingStages{
			Extraction:  services.NewExtractionStage(geminiService, services.NewPDFParserService(), log),
			Structuring: services.NewStructuringStage(geminiService, prompts),
			Validation:  services.NewValidationStage(geminiService, prompts),
		},
		generator,
		validator,
		bus,
		log,
	)
	worker := services.NewWorker(jobRepo, runner, services.WorkerOptions{
		Concurrency:     cfg.Worker.Concurrency,
		QueueSize:       cfg.Worker.QueueSize,
		PollInterval:    cfg.Worker.PollInterval,
		StaleAfter:      cfg.Worker.StaleAfter,
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
	}, log)
	worker.Start(ctx)

	jobService := services.NewJobService(jobRepo, portfolioRepo, storageService, worker, log)
	portfolioService := services.NewPortfolioService(jobService, portfolioRepo, generator, validator, index, log)
	customizer := services.NewCustomizerService(fileTools, registry, portfolioRepo, geminiService, prompts, log)
	deployService := services.NewDeployService(cfg.GitHub, customizer, log)

	// Initialize handlers
	h := handlers.Handlers{
		Health:    handlers.NewHealthHandler(cfg.Server.Version, cfg.Gemini.AgentModel),
		Resume:    handlers.NewResumeHandler(jobService),
		Job:       handlers.NewJobHandler(jobService, bus, log),
		Portfolio: handlers.NewPortfolioHandler(jobService, portfolioService, registry),
		Customize: handlers.NewCustomizeHandler(customizer),
		Chat:      handlers.NewChatHandler(geminiService, log),
		Deploy:    handlers.NewDeployHandler(deployService),
	}
	clientLimits := ratelimit.NewRegistry(ratelimit.Config{
		Limit:  cfg.Server.UploadRateLimit,
		Window: time.Minute,
	})
	log.Info("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      cfg.Server.ProjectName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize) + 1<<20,
		ErrorHandler: handlers.NewErrorHandler(log),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(corsConfig(cfg)))
	app.Use(metrics.FiberMiddleware())
	app.Use(handlers.Version(cfg.Server.Version))

	// Routes
	api := app.Group(cfg.Server.APIPrefix)
	handlers.RegisterRoutes(api, h, handlers.RouteOptions{
		Auth:        middleware.NewAuthMiddleware(cfg.Auth.SecretKey, cfg.Auth.Issuer),
		UploadLimit: middleware.RateLimit(clientLimits, "upload"),
		ChatLimit:   middleware.RateLimit(clientLimits, "chat"),
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": cfg.Server.ProjectName,
			"version": cfg.Server.Version,
			"docs":    cfg.Server.APIPrefix + "/health",
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		<-quit
		log.Info("🛑 Shutting down server...")
		// In-flight jobs finish or are marked FAILED before the process exits.
		worker.Stop()
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error("❌ Server forced to shutdown", "error", err)
		}
		cancel()
		if err := bus.Close(); err != nil {
			log.Warn("⚠️ Failed to close event bus", "error", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("🚀 Server starting", "addr", addr, "api_prefix", cfg.Server.APIPrefix)

	if err := app.Listen(addr); err != nil {
		fatal(log, "❌ Failed to start server", err)
	}
	<-stopped
	log.Info("✅ Server exited")
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Server.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func corsConfig(cfg *config.Config) cors.Config {
	origins := "*"
	if len(cfg.Server.CORSOrigins) > 0 {
		origins = strings.Join(cfg.Server.CORSOrigins, ",")
	}
	return cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + middleware.HeaderRequestID,
		ExposeHeaders: middleware.HeaderRequestID + ", Retry-After",
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
