package services

import (
	"strings"
	"testing"

	"domus/internal/models"
)

func newTestIntentRouter() (*IntentRouter, *InboxService) {
	router, inbox, debounce := newTestRouter()
	return NewIntentRouter(router, debounce), inbox
}

func expiredItems(names ...string) []models.ExpiringItem {
	items := make([]models.ExpiringItem, 0, len(names))
	for _, name := range names {
		items = append(items, models.ExpiringItem{
			Name:        name,
			Category:    models.CategoryDairy,
			DaysExpired: 1,
		})
	}
	return items
}

// TestExpiryIntentBecomesNotification walks a detected-expiry event through
// the router and checks the resulting inbox entry
func TestExpiryIntentBecomesNotification(t *testing.T) {
	ir, inbox := newTestIntentRouter()

	event := models.NewEvent("test", "hh-1", models.DetectedExpiryPayload{
		Count:        2,
		ExpiredItems: expiredItems("milk", "yogurt"),
	})
	if err := ir.handleDetectedExpiry(event); err != nil {
		t.Fatalf("handleDetectedExpiry failed: %v", err)
	}

	notes := inbox.List("hh-1", false, 0)
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notes))
	}
	note := notes[0]
	if note.Type != models.NotificationPerishableExpiry {
		t.Errorf("type = %s, want %s", note.Type, models.NotificationPerishableExpiry)
	}
	if note.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", note.Severity)
	}
	if !strings.Contains(note.Message, "2 item(s)") {
		t.Errorf("message %q should report 2 items", note.Message)
	}
}

// TestExpiryThrottlePerItem re-announces only items not yet notified: a
// second batch repeating milk but adding cheese still alerts for cheese
func TestExpiryThrottlePerItem(t *testing.T) {
	ir, inbox := newTestIntentRouter()

	first := models.NewEvent("test", "hh-1", models.ExpiryWarningPayload{
		Count:         1,
		ExpiringItems: expiredItems("milk"),
	})
	if err := ir.handleExpiryWarning(first); err != nil {
		t.Fatalf("first warning failed: %v", err)
	}

	second := models.NewEvent("test", "hh-1", models.ExpiryWarningPayload{
		Count:         2,
		ExpiringItems: expiredItems("milk", "cheese"),
	})
	if err := ir.handleExpiryWarning(second); err != nil {
		t.Fatalf("second warning failed: %v", err)
	}

	notes := inbox.List("hh-1", false, 0)
	if len(notes) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notes))
	}
	// newest first: the surviving item count in the second batch is 1
	if !strings.Contains(notes[0].Message, "1 item(s)") {
		t.Errorf("second notification %q should count only the un-throttled item", notes[0].Message)
	}

	repeat := models.NewEvent("test", "hh-1", models.ExpiryWarningPayload{
		Count:         1,
		ExpiringItems: expiredItems("milk"),
	})
	if err := ir.handleExpiryWarning(repeat); err != nil {
		t.Fatalf("repeat warning failed: %v", err)
	}
	if got := len(inbox.List("hh-1", false, 0)); got != 2 {
		t.Errorf("fully throttled batch created a notification, inbox has %d entries", got)
	}
}

// TestProcurementIntentListsStaples checks the shopping reminder copy
func TestProcurementIntentListsStaples(t *testing.T) {
	ir, inbox := newTestIntentRouter()

	event := models.NewEvent("test", "hh-1", models.RequireProcurementPayload{
		MissingItems: []string{"bread", "eggs"},
		Category:     "staples",
	})
	if err := ir.handleRequireProcurement(event); err != nil {
		t.Fatalf("handleRequireProcurement failed: %v", err)
	}

	notes := inbox.List("hh-1", false, 0)
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notes))
	}
	if notes[0].Severity != models.SeverityLow {
		t.Errorf("severity = %s, want low", notes[0].Severity)
	}
	if !strings.Contains(notes[0].Message, "bread, eggs") {
		t.Errorf("message %q should list the missing staples", notes[0].Message)
	}

	empty := models.NewEvent("test", "hh-1", models.RequireProcurementPayload{Category: "staples"})
	if err := ir.handleRequireProcurement(empty); err != nil {
		t.Fatalf("empty procurement event failed: %v", err)
	}
	if got := len(inbox.List("hh-1", false, 0)); got != 1 {
		t.Errorf("empty staples list should not notify, inbox has %d entries", got)
	}
}

// TestConfidenceDegradedIntent carries the item name into the suggestion
func TestConfidenceDegradedIntent(t *testing.T) {
	ir, inbox := newTestIntentRouter()

	event := models.NewEvent("test", "hh-1", models.ConfidenceDegradedPayload{
		ItemName:            "leftovers",
		Category:            models.CategoryLeftovers,
		EffectiveConfidence: 0.42,
		HoursSinceSeen:      30,
	})
	if err := ir.handleConfidenceDegraded(event); err != nil {
		t.Fatalf("handleConfidenceDegraded failed: %v", err)
	}

	notes := inbox.List("hh-1", false, 0)
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notes))
	}
	if notes[0].Type != models.NotificationConfidenceDegraded {
		t.Errorf("type = %s, want %s", notes[0].Type, models.NotificationConfidenceDegraded)
	}
	if !strings.Contains(notes[0].Message, "leftovers") {
		t.Errorf("message %q should name the unseen item", notes[0].Message)
	}
}

// TestMismatchedPayloadRejected guards the type assertions on bus payloads
func TestMismatchedPayloadRejected(t *testing.T) {
	ir, _ := newTestIntentRouter()

	event := models.NewEvent("test", "hh-1", models.HardwareDisconnectedPayload{DeviceType: "fridge_camera"})
	event.Payload = models.RequireProcurementPayload{MissingItems: []string{"milk"}}

	if err := ir.handleHardwareDisconnected(event); err == nil {
		t.Error("expected error for mismatched payload type")
	}
}
