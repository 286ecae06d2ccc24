package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler checks every named dependency on /ready. Nil entries are
// skipped.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	checks := make(fiber.Map, len(h.deps))
	ready := true
	for name, dep := range h.deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"checks": checks,
		})
	}
	return c.JSON(fiber.Map{
		"status": "ready",
		"checks": checks,
	})
}

func (h *HealthHandler) Register(r fiber.Router) {
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
}
