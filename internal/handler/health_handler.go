package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/learnflow-api/internal/config"
	"github.com/noah-isme/learnflow-api/internal/events"
	"github.com/noah-isme/learnflow-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Service     string         `json:"service"`
	Environment string         `json:"environment"`
	Events      *events.Health `json:"events,omitempty"`
}

// HealthCheck reports application health. A failing event transport degrades
// the status without failing the probe, since evaluation keeps working.
func HealthCheck(cfg config.Config, eventHealth func() events.Health) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if eventHealth != nil {
			health := eventHealth()
			payload.Events = &health
			if health.State == events.StateFailing {
				payload.Status = "degraded"
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
