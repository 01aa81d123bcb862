package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/quizzy-go-api/internal/config"
	"github.com/noah-isme/quizzy-go-api/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// DependencyCheck probes one backing service.
type DependencyCheck func(ctx context.Context) error

// HealthCheck returns a handler that reports service health and the state of each dependency.
func HealthCheck(cfg config.Config, checks map[string]DependencyCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if len(checks) > 0 {
			ctx, cancel := context.WithTimeout(requestContext(c), healthCheckTimeout)
			defer cancel()

			payload.Dependencies = make(map[string]string, len(checks))
			for name, check := range checks {
				if err := check(ctx); err != nil {
					payload.Dependencies[name] = err.Error()
					payload.Status = "degraded"
					continue
				}
				payload.Dependencies[name] = "ok"
			}
		}

		if payload.Status != "ok" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
				Success: false,
				Data:    payload,
				Message: "service degraded",
			})
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
