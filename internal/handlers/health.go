package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"domus/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	connManager *services.ConnectionManager
	redis       *services.RedisService
}

// NewHealthHandler creates a new health handler. redis may be nil when
// running without Redis.
func NewHealthHandler(connManager *services.ConnectionManager, redis *services.RedisService) *HealthHandler {
	return &HealthHandler{connManager: connManager, redis: redis}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	redisStatus := "disabled"
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx); err != nil {
			redisStatus = "unreachable"
		} else {
			redisStatus = "healthy"
		}
	}

	return c.JSON(fiber.Map{
		"status":      "healthy",
		"connections": h.connManager.Count(),
		"redis":       redisStatus,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}
