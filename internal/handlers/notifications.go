package handlers

import (
	"github.com/gofiber/fiber/v2"

	"domus/internal/services"
)

// NotificationHandler serves the in-app notification inbox
type NotificationHandler struct {
	inbox *services.InboxService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(inbox *services.InboxService) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// List handles GET /api/households/:householdId/notifications
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	householdID := c.Params("householdId")
	if householdID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "household ID is required",
		})
	}

	unreadOnly := c.QueryBool("unread_only", false)
	limit := c.QueryInt("limit", 50)

	notifications := h.inbox.List(householdID, unreadOnly, limit)
	return c.JSON(fiber.Map{
		"household_id":  householdID,
		"unread_count":  h.inbox.UnreadCount(householdID),
		"notifications": notifications,
	})
}

// MarkRead handles POST /api/households/:householdId/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	householdID := c.Params("householdId")
	notificationID := c.Params("id")
	if householdID == "" || notificationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "household ID and notification ID are required",
		})
	}

	if !h.inbox.MarkRead(householdID, notificationID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "notification not found",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

// MarkAllRead handles POST /api/households/:householdId/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	householdID := c.Params("householdId")
	if householdID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "household ID is required",
		})
	}

	updated := h.inbox.MarkAllRead(householdID)
	return c.JSON(fiber.Map{"success": true, "updated": updated})
}
