package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	pingDB      func(ctx context.Context) error
	queueHealth func() bool
}

func NewHealthHandler(pingDB func(ctx context.Context) error, queueHealth func() bool) *HealthHandler {
	return &HealthHandler{pingDB: pingDB, queueHealth: queueHealth}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	database := h.pingDB(ctx) == nil
	status := fiber.StatusOK
	if !database {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"database":     database,
		"queue_broker": h.queueHealth(),
	})
}
