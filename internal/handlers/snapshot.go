package handlers

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"domus/internal/models"
	"domus/internal/services"
)

// SnapshotHandler ingests fridge camera snapshots
type SnapshotHandler struct {
	inventory *services.InventoryService
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(inventory *services.InventoryService) *SnapshotHandler {
	return &SnapshotHandler{inventory: inventory}
}

// snapshotRequest is the inbound body from the vision collaborator
type snapshotRequest struct {
	HouseholdID string                `json:"household_id"`
	Items       []models.SnapshotItem `json:"items"`
}

// Handle processes POST /api/snapshots. Debounced submissions return 429
// with a Retry-After hint rather than an error body.
func (h *SnapshotHandler) Handle(c *fiber.Ctx) error {
	var req snapshotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.HouseholdID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "household_id is required",
		})
	}

	result, err := h.inventory.ProcessSnapshot(c.Context(), req.HouseholdID, req.Items)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if !result.Accepted {
		retrySeconds := int(math.Ceil(result.RetryAfter.Seconds()))
		c.Set("Retry-After", strconv.Itoa(retrySeconds))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"accepted":            false,
			"retry_after_seconds": retrySeconds,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"accepted":    true,
		"frame_id":    result.FrameID,
		"total_items": result.TotalItems,
		"changes": fiber.Map{
			"added":       len(result.Changes.Added),
			"removed":     len(result.Changes.Removed),
			"moved":       len(result.Changes.Moved),
			"consumption": len(result.Changes.Consumption),
		},
	})
}
