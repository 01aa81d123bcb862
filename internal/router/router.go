package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/quizzy-go-api/internal/config"
	"github.com/noah-isme/quizzy-go-api/internal/handler"
	"github.com/noah-isme/quizzy-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	IdentityHandler          *handler.IdentityHandler
	DashboardDocumentHandler *handler.DashboardDocumentHandler
	HealthChecks             map[string]handler.DependencyCheck
	IDTokenMiddleware        fiber.Handler
	SignInLimiter            fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	if deps.IdentityHandler != nil {
		deps.IdentityHandler.Register(api.Group("/identity"), handler.IdentityRouteOptions{
			Protect:       deps.IDTokenMiddleware,
			SignInLimiter: deps.SignInLimiter,
		})
	}

	// Mirrors the object storage media URL shape the client is configured with.
	if deps.DashboardDocumentHandler != nil {
		deps.DashboardDocumentHandler.Register(app.Group("/files"))
	}
}
