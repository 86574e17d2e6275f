package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/swarmdesk/swarmdesk/internal/storage"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	backend     string
	store       storage.Store
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version, backend string, store storage.Store) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, backend: backend, store: store}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by probing the storage backend.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := h.store.Stats(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "storage backend unavailable",
				"details": fiber.Map{"backend": h.backend, "error": err.Error()},
			},
		})
	}

	return c.JSON(fiber.Map{
		"status":  "ready",
		"backend": h.backend,
	})
}
