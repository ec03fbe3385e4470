// Package api assembles the read API over stored evaluations and version
// history.
package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/transparency-atlas/backend/internal/api/handlers"
	"github.com/transparency-atlas/backend/internal/metrics"
	"github.com/transparency-atlas/backend/internal/middleware/ratelimit"
	"github.com/transparency-atlas/backend/internal/middleware/security"
	"github.com/transparency-atlas/backend/internal/middleware/validation"
	"github.com/transparency-atlas/backend/internal/rubric"
	"github.com/transparency-atlas/backend/pkg/config"
	"github.com/transparency-atlas/backend/pkg/logger"
)

type Store interface {
	handlers.SnapshotStore
	handlers.HistoryStore
}

// New builds the fiber app. The returned limiter must be stopped on shutdown.
func New(cfg config.ServerConfig, store Store, r *rubric.Rubric) (*fiber.App, *ratelimit.RateLimiter) {
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.MaxRequestsPerMinute,
		Logger:               logger.GetLogger(),
	})

	origins := "*"
	if len(cfg.AllowedOrigins) > 0 {
		origins = strings.Join(cfg.AllowedOrigins, ", ")
	}

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		IsDevelopment:  cfg.Development,
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	modelsHandler := handlers.NewModelsHandler(store, r)
	historyHandler := handlers.NewHistoryHandler(store)

	v1 := app.Group("/api/v1", limiter.Middleware(), validation.Middleware(validation.Config{
		MaxBodySize: cfg.BodyLimit,
		Logger:      logger.GetLogger(),
	}))

	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	v1.Get("/rubric", modelsHandler.GetRubric)
	v1.Get("/models", modelsHandler.ListModels)
	v1.Get("/summary", modelsHandler.GetSummary)

	v1.Get("/models/:id/scores", validation.ModelIDParam(), modelsHandler.GetScores)
	v1.Get("/models/:id/history", validation.ModelIDParam(), historyHandler.GetHistory)
	v1.Post("/models/:id/history", validation.ModelIDParam(), historyHandler.AppendEntry)

	return app, limiter
}
