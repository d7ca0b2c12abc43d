package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"domus/internal/services"
)

// InventoryHandler serves the current inventory view
type InventoryHandler struct {
	inventory *services.InventoryService
	stats     *services.EventStats
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventory *services.InventoryService, stats *services.EventStats) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, stats: stats}
}

// Get handles GET /api/households/:householdId/inventory, returning the
// decay-adjusted inventory
func (h *InventoryHandler) Get(c *fiber.Ctx) error {
	householdID := c.Params("householdId")
	if householdID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "household ID is required",
		})
	}

	items := h.inventory.GetInventory(householdID, time.Now().UTC())

	needVerification := 0
	for _, item := range items {
		if item.VerificationNeeded {
			needVerification++
		}
	}

	return c.JSON(fiber.Map{
		"household_id":       householdID,
		"total_items":        len(items),
		"needs_verification": needVerification,
		"items":              items,
	})
}

// GetStale handles GET /api/households/:householdId/inventory/stale,
// returning only the items whose confidence has decayed below the stale line
func (h *InventoryHandler) GetStale(c *fiber.Ctx) error {
	householdID := c.Params("householdId")
	if householdID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "household ID is required",
		})
	}

	items := h.inventory.GetStaleItems(householdID, time.Now().UTC())
	return c.JSON(fiber.Map{
		"household_id": householdID,
		"total_items":  len(items),
		"items":        items,
	})
}

// Stats handles GET /api/events/stats with bus dispatch counters
func (h *InventoryHandler) Stats(c *fiber.Ctx) error {
	counts, total := h.stats.Counts()
	return c.JSON(fiber.Map{
		"total_events": total,
		"by_type":      counts,
	})
}
