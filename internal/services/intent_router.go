package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"domus/internal/models"
)

// IntentRouter listens for notifiable events on the bus, lifts each into a
// structured intent, and routes the intent to a notification. Expiry
// findings pass through the per-item throttle here, so a batch containing
// one already-notified item still alerts for the others.
type IntentRouter struct {
	router   *NotificationRouter
	debounce *DebounceManager
}

// NewIntentRouter creates the router; call Register to attach it to a bus
func NewIntentRouter(router *NotificationRouter, debounce *DebounceManager) *IntentRouter {
	return &IntentRouter{router: router, debounce: debounce}
}

// Register subscribes the router's handlers on the bus
func (ir *IntentRouter) Register(bus *EventBus) {
	bus.Subscribe(models.EventDetectedExpiry, ir.handleDetectedExpiry)
	bus.Subscribe(models.EventExpiryWarning, ir.handleExpiryWarning)
	bus.Subscribe(models.EventRequireProcurement, ir.handleRequireProcurement)
	bus.Subscribe(models.EventHardwareDisconnected, ir.handleHardwareDisconnected)
	bus.Subscribe(models.EventConfidenceDegraded, ir.handleConfidenceDegraded)
	log.Println("🚦 [INTENT-ROUTER] subscribed to notifiable intents")
}

func (ir *IntentRouter) handleDetectedExpiry(event models.Event) error {
	payload, ok := event.Payload.(models.DetectedExpiryPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	items := ir.filterThrottled(event.HouseholdID, payload.ExpiredItems)
	if len(items) == 0 {
		return nil
	}

	return ir.route(models.Intent{
		Type:        models.IntentDetectedExpiry,
		HouseholdID: event.HouseholdID,
		Confidence:  1.0,
		Reasoning:   fmt.Sprintf("%d item(s) past their expiration estimate", len(items)),
		SourceID:    event.EventID,
		Payload:     models.DetectedExpiryPayload{Count: len(items), ExpiredItems: items},
		CreatedAt:   time.Now().UTC(),
	})
}

func (ir *IntentRouter) handleExpiryWarning(event models.Event) error {
	payload, ok := event.Payload.(models.ExpiryWarningPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	items := ir.filterThrottled(event.HouseholdID, payload.ExpiringItems)
	if len(items) == 0 {
		return nil
	}

	return ir.route(models.Intent{
		Type:        models.IntentExpiryWarning,
		HouseholdID: event.HouseholdID,
		Confidence:  0.9,
		Reasoning:   fmt.Sprintf("%d item(s) inside the warning window", len(items)),
		SourceID:    event.EventID,
		Payload:     models.ExpiryWarningPayload{Count: len(items), ExpiringItems: items},
		CreatedAt:   time.Now().UTC(),
	})
}

func (ir *IntentRouter) handleRequireProcurement(event models.Event) error {
	payload, ok := event.Payload.(models.RequireProcurementPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if len(payload.MissingItems) == 0 {
		return nil
	}

	return ir.route(models.Intent{
		Type:        models.IntentRequireProcurement,
		HouseholdID: event.HouseholdID,
		Confidence:  0.8,
		Reasoning:   "staples missing from inventory",
		SourceID:    event.EventID,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	})
}

func (ir *IntentRouter) handleHardwareDisconnected(event models.Event) error {
	payload, ok := event.Payload.(models.HardwareDisconnectedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	return ir.route(models.Intent{
		Type:        models.IntentHardwareDisconnected,
		HouseholdID: event.HouseholdID,
		Confidence:  1.0,
		Reasoning:   "device connection lost",
		SourceID:    event.EventID,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	})
}

func (ir *IntentRouter) handleConfidenceDegraded(event models.Event) error {
	payload, ok := event.Payload.(models.ConfidenceDegradedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	return ir.route(models.Intent{
		Type:        models.IntentConfidenceDegraded,
		HouseholdID: event.HouseholdID,
		Confidence:  payload.EffectiveConfidence,
		Reasoning:   fmt.Sprintf("%s unseen for %.0f hours", payload.ItemName, payload.HoursSinceSeen),
		SourceID:    event.EventID,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	})
}

// route maps an intent to its notification type, severity and copy, then
// hands it to the notification router
func (ir *IntentRouter) route(intent models.Intent) error {
	req := CreateNotificationRequest{
		HouseholdID: intent.HouseholdID,
		UserID:      intent.UserID,
		Context:     intent.Payload,
	}

	switch intent.Type {
	case models.IntentDetectedExpiry:
		payload := intent.Payload.(models.DetectedExpiryPayload)
		req.Type = models.NotificationPerishableExpiry
		req.Severity = models.SeverityHigh
		req.Title = "Expired Items Detected"
		req.Message = fmt.Sprintf("%d item(s) in your fridge have expired and should be discarded.", payload.Count)
	case models.IntentExpiryWarning:
		payload := intent.Payload.(models.ExpiryWarningPayload)
		req.Type = models.NotificationPerishableExpiry
		req.Severity = models.SeverityMedium
		req.Title = "Items Expiring Soon"
		req.Message = fmt.Sprintf("%d item(s) will expire within 3 days. Use them soon!", payload.Count)
	case models.IntentRequireProcurement:
		payload := intent.Payload.(models.RequireProcurementPayload)
		req.Type = models.NotificationProcurementRequired
		req.Severity = models.SeverityLow
		req.Title = "Shopping Reminder"
		req.Message = fmt.Sprintf("You're running low on: %s", strings.Join(payload.MissingItems, ", "))
	case models.IntentHardwareDisconnected:
		req.Type = models.NotificationHardwareDisconnected
		req.Severity = models.SeverityHigh
		req.Title = "Fridge Camera Offline"
		req.Message = "Your fridge camera has disconnected. Check the device connection."
	case models.IntentConfidenceDegraded:
		payload := intent.Payload.(models.ConfidenceDegradedPayload)
		req.Type = models.NotificationConfidenceDegraded
		req.Severity = models.SeverityLow
		req.Title = "Inventory Check Suggested"
		req.Message = fmt.Sprintf("Haven't seen %s in a while. It may already be used up.", payload.ItemName)
	default:
		return fmt.Errorf("no notification route for intent %s", intent.Type)
	}

	_, err := ir.router.Create(context.Background(), req)
	return err
}

// filterThrottled keeps only items whose per-item expiry throttle accepts a
// new notification. Store errors fail open.
func (ir *IntentRouter) filterThrottled(householdID string, items []models.ExpiringItem) []models.ExpiringItem {
	if ir.debounce == nil {
		return items
	}

	kept := make([]models.ExpiringItem, 0, len(items))
	for _, item := range items {
		accept, err := ir.debounce.AcceptExpiryNotification(context.Background(), householdID, strings.ToLower(item.Name))
		if err != nil {
			log.Printf("⚠️ [INTENT-ROUTER] expiry throttle check failed for %s, allowing: %v", item.Name, err)
			accept = true
		}
		if accept {
			kept = append(kept, item)
		} else if m := GetMetrics(); m != nil {
			m.RecordNotificationThrottled()
		}
	}
	return kept
}
