package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"domus/internal/services"
)

// IoTHandler receives device lifecycle callbacks from fridge hardware
type IoTHandler struct {
	inventory *services.InventoryService
}

// NewIoTHandler creates a new IoT handler
func NewIoTHandler(inventory *services.InventoryService) *IoTHandler {
	return &IoTHandler{inventory: inventory}
}

type disconnectRequest struct {
	HouseholdID string `json:"household_id"`
	DeviceType  string `json:"device_type"`
	LastSeen    string `json:"last_seen,omitempty"` // RFC 3339
}

// Disconnect handles POST /api/iot/disconnect, raising the hardware alert
// for the household
func (h *IoTHandler) Disconnect(c *fiber.Ctx) error {
	var req disconnectRequest
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

	lastSeen := time.Now().UTC()
	if req.LastSeen != "" {
		if parsed, err := time.Parse(time.RFC3339, req.LastSeen); err == nil {
			lastSeen = parsed.UTC()
		}
	}

	h.inventory.HandleHardwareDisconnect(req.HouseholdID, req.DeviceType, lastSeen)
	return c.JSON(fiber.Map{"acknowledged": true})
}
