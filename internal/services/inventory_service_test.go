package services

import (
	"context"
	"testing"
	"time"

	"domus/internal/models"
)

func newTestInventory(t *testing.T, snapshotDebounce time.Duration) (*InventoryService, *EventBus) {
	t.Helper()
	bus := NewEventBus(1000, 500)
	bus.Start()
	t.Cleanup(bus.Stop)

	debounce := NewDebounceManager(NewMemoryThrottleStore(), snapshotDebounce, time.Millisecond)
	comparator := NewFrameComparator(0.5)
	decay := NewConfidenceDecayService(staticRates{models.CategoryDairy: 0.05})
	service := NewInventoryService(comparator, decay, debounce, bus, 10)
	return service, bus
}

func snapshotItems(names ...string) []models.SnapshotItem {
	items := make([]models.SnapshotItem, 0, len(names))
	for _, name := range names {
		items = append(items, models.SnapshotItem{
			Name:       name,
			Category:   "dairy",
			Location:   "top shelf",
			Confidence: 0.9,
		})
	}
	return items
}

// TestProcessSnapshotFirstFrame verifies additions, inventory state and the
// published events for an empty household
func TestProcessSnapshotFirstFrame(t *testing.T) {
	service, bus := newTestInventory(t, time.Millisecond)

	added := newCollector(10)
	bus.Subscribe(models.EventItemAdded, added.handle)
	updated := newCollector(10)
	bus.Subscribe(models.EventInventoryUpdated, updated.handle)

	result, err := service.ProcessSnapshot(context.Background(), "hh-1", snapshotItems("milk", "eggs"))
	if err != nil {
		t.Fatalf("ProcessSnapshot failed: %v", err)
	}
	if !result.Accepted {
		t.Fatal("First snapshot must be accepted")
	}
	if result.TotalItems != 2 || len(result.Changes.Added) != 2 {
		t.Errorf("Expected 2 items and 2 additions, got %d/%d", result.TotalItems, len(result.Changes.Added))
	}

	added.wait(t, 2)
	events := updated.wait(t, 1)
	payload := events[0].Payload.(models.InventoryUpdatedPayload)
	if payload.TotalItems != 2 || payload.ItemsAdded != 2 {
		t.Errorf("Unexpected summary payload: %+v", payload)
	}

	inventory := service.GetInventory("hh-1", time.Now().UTC())
	if len(inventory) != 2 {
		t.Fatalf("Expected 2 inventory items, got %d", len(inventory))
	}
	if inventory[0].Name != "eggs" || inventory[1].Name != "milk" {
		t.Errorf("Expected name-sorted inventory, got %s, %s", inventory[0].Name, inventory[1].Name)
	}
	if inventory[1].EffectiveConfidence < 0.89 {
		t.Errorf("Fresh item lost confidence: %.3f", inventory[1].EffectiveConfidence)
	}
}

// TestProcessSnapshotDebounced verifies the ingest debounce rejects rapid
// resubmission with a retry hint
func TestProcessSnapshotDebounced(t *testing.T) {
	service, _ := newTestInventory(t, time.Hour)
	ctx := context.Background()

	first, err := service.ProcessSnapshot(ctx, "hh-1", snapshotItems("milk"))
	if err != nil || !first.Accepted {
		t.Fatalf("First snapshot must be accepted: %v", err)
	}

	second, err := service.ProcessSnapshot(ctx, "hh-1", snapshotItems("milk"))
	if err != nil {
		t.Fatalf("Debounced snapshot must not error: %v", err)
	}
	if second.Accepted {
		t.Fatal("Rapid resubmission must be debounced")
	}
	if second.RetryAfter <= 0 {
		t.Errorf("Expected a positive retry hint, got %v", second.RetryAfter)
	}

	// Another household is unaffected
	other, _ := service.ProcessSnapshot(ctx, "hh-2", snapshotItems("milk"))
	if !other.Accepted {
		t.Error("Debounce must be per household")
	}
}

// TestProcessSnapshotRemovalAndConsumption verifies the removal path drops
// the item and raises a consumption signal
func TestProcessSnapshotRemovalAndConsumption(t *testing.T) {
	service, bus := newTestInventory(t, time.Millisecond)
	ctx := context.Background()

	consumption := newCollector(10)
	bus.Subscribe(models.EventConsumptionLikely, consumption.handle)

	for i := 0; i < 2; i++ {
		if _, err := service.ProcessSnapshot(ctx, "hh-1", snapshotItems("milk")); err != nil {
			t.Fatalf("Snapshot %d failed: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	result, err := service.ProcessSnapshot(ctx, "hh-1", nil)
	if err != nil {
		t.Fatalf("Empty snapshot failed: %v", err)
	}
	if len(result.Changes.Removed) != 1 {
		t.Fatalf("Expected milk removal, got %+v", result.Changes.Removed)
	}
	if len(result.Changes.Consumption) != 1 {
		t.Fatalf("Expected consumption signal after two stable frames")
	}

	events := consumption.wait(t, 1)
	payload := events[0].Payload.(models.ConsumptionLikelyPayload)
	if payload.ItemName != "milk" {
		t.Errorf("Expected milk consumption, got %s", payload.ItemName)
	}

	if got := service.GetInventory("hh-1", time.Now().UTC()); len(got) != 0 {
		t.Errorf("Removed item must leave the inventory, got %+v", got)
	}
}

// TestProcessSnapshotExpiryFindings verifies explicit expiration estimates
// produce detected-expiry events during ingestion
func TestProcessSnapshotExpiryFindings(t *testing.T) {
	service, bus := newTestInventory(t, time.Millisecond)

	detected := newCollector(10)
	bus.Subscribe(models.EventDetectedExpiry, detected.handle)
	warnings := newCollector(10)
	bus.Subscribe(models.EventExpiryWarning, warnings.handle)

	items := []models.SnapshotItem{
		{
			Name:               "old yogurt",
			Category:           "dairy",
			Confidence:         0.9,
			ExpirationEstimate: time.Now().UTC().AddDate(0, 0, -2).Format(time.RFC3339),
		},
		{
			Name:               "milk",
			Category:           "dairy",
			Confidence:         0.9,
			ExpirationEstimate: time.Now().UTC().AddDate(0, 0, 2).Format(time.RFC3339),
		},
	}
	if _, err := service.ProcessSnapshot(context.Background(), "hh-1", items); err != nil {
		t.Fatalf("ProcessSnapshot failed: %v", err)
	}

	expiredEvents := detected.wait(t, 1)
	expired := expiredEvents[0].Payload.(models.DetectedExpiryPayload)
	if expired.Count != 1 || expired.ExpiredItems[0].Name != "old yogurt" {
		t.Errorf("Unexpected expired payload: %+v", expired)
	}
	if expired.ExpiredItems[0].DaysExpired != 2 {
		t.Errorf("Expected 2 days expired, got %d", expired.ExpiredItems[0].DaysExpired)
	}

	warningEvents := warnings.wait(t, 1)
	warning := warningEvents[0].Payload.(models.ExpiryWarningPayload)
	if warning.Count != 1 || warning.ExpiringItems[0].Name != "milk" {
		t.Errorf("Unexpected warning payload: %+v", warning)
	}
}

// TestProcessSnapshotStaplesCheck verifies missing staples raise the
// procurement intent
func TestProcessSnapshotStaplesCheck(t *testing.T) {
	service, bus := newTestInventory(t, time.Millisecond)

	procurement := newCollector(10)
	bus.Subscribe(models.EventRequireProcurement, procurement.handle)

	if _, err := service.ProcessSnapshot(context.Background(), "hh-1", snapshotItems("milk", "eggs")); err != nil {
		t.Fatalf("ProcessSnapshot failed: %v", err)
	}

	events := procurement.wait(t, 1)
	payload := events[0].Payload.(models.RequireProcurementPayload)
	expected := []string{"bread", "butter", "cheese"}
	if len(payload.MissingItems) != len(expected) {
		t.Fatalf("Expected %v missing, got %v", expected, payload.MissingItems)
	}
	for i, name := range expected {
		if payload.MissingItems[i] != name {
			t.Errorf("Missing staple %d: expected %s, got %s", i, name, payload.MissingItems[i])
		}
	}
}

// TestDecaySweep verifies long-unseen items raise confidence_degraded once
func TestDecaySweep(t *testing.T) {
	service, bus := newTestInventory(t, time.Millisecond)

	degraded := newCollector(10)
	bus.Subscribe(models.EventConfidenceDegraded, degraded.handle)

	if _, err := service.ProcessSnapshot(context.Background(), "hh-1", snapshotItems("milk")); err != nil {
		t.Fatalf("ProcessSnapshot failed: %v", err)
	}

	// Age the item past the stale horizon
	state := service.household("hh-1")
	state.mu.Lock()
	for _, item := range state.inventory {
		item.LastSeen = time.Now().UTC().Add(-72 * time.Hour)
		item.FirstSeen = item.LastSeen
	}
	state.mu.Unlock()

	if stale := service.DecaySweep(time.Now().UTC()); stale != 1 {
		t.Fatalf("Expected 1 stale item, got %d", stale)
	}

	events := degraded.wait(t, 1)
	payload := events[0].Payload.(models.ConfidenceDegradedPayload)
	if payload.ItemName != "milk" || !payload.VerificationNeeded {
		t.Errorf("Unexpected degraded payload: %+v", payload)
	}

	// A second sweep must not re-announce the same stale item
	if stale := service.DecaySweep(time.Now().UTC()); stale != 0 {
		t.Errorf("Expected no new stale items on repeat sweep, got %d", stale)
	}
}

// TestHardwareDisconnect verifies the hardware event reaches the bus
func TestHardwareDisconnect(t *testing.T) {
	service, bus := newTestInventory(t, time.Millisecond)

	hardware := newCollector(10)
	bus.Subscribe(models.EventHardwareDisconnected, hardware.handle)

	lastSeen := time.Now().UTC().Add(-time.Minute)
	service.HandleHardwareDisconnect("hh-1", "", lastSeen)

	events := hardware.wait(t, 1)
	payload := events[0].Payload.(models.HardwareDisconnectedPayload)
	if payload.DeviceType != "fridge_camera" {
		t.Errorf("Expected default device type fridge_camera, got %s", payload.DeviceType)
	}
	if events[0].HouseholdID != "hh-1" {
		t.Errorf("Expected household hh-1, got %s", events[0].HouseholdID)
	}
}
