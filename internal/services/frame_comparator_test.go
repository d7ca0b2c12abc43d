package services

import (
	"math"
	"testing"
	"time"

	"domus/internal/models"
)

func observed(name string, category models.ItemCategory, location string, confidence float64) models.ObservedItem {
	return models.ObservedItem{
		Name:       name,
		Category:   category,
		Location:   location,
		Quantity:   1,
		Confidence: confidence,
		ObservedAt: time.Now(),
	}
}

// TestCompareFirstFrame verifies the first frame produces only additions
func TestCompareFirstFrame(t *testing.T) {
	comparator := NewFrameComparator(0.5)

	current := makeFrame("f1", time.Now(),
		observed("milk", models.CategoryDairy, "top shelf", 0.9),
		observed("blurry thing", models.CategoryOther, "back", 0.3),
	)

	changes := comparator.Compare(current, nil)

	if len(changes.Added) != 1 {
		t.Fatalf("Expected 1 addition, got %d", len(changes.Added))
	}
	if changes.Added[0].ItemName != "milk" {
		t.Errorf("Expected milk added, got %s", changes.Added[0].ItemName)
	}
	if len(changes.Removed) != 0 || len(changes.Moved) != 0 || len(changes.Consumption) != 0 {
		t.Errorf("First frame must not produce removals, moves or consumption: %+v", changes)
	}
}

// TestCompareDetectsAddition verifies new items are reported against history
func TestCompareDetectsAddition(t *testing.T) {
	comparator := NewFrameComparator(0.5)
	now := time.Now()

	history := []models.Frame{
		makeFrame("f1", now, observed("milk", models.CategoryDairy, "top shelf", 0.9)),
	}
	current := makeFrame("f2", now.Add(time.Minute),
		observed("milk", models.CategoryDairy, "top shelf", 0.9),
		observed("eggs", models.CategoryDairy, "door", 0.8),
	)

	changes := comparator.Compare(current, history)

	if len(changes.Added) != 1 || changes.Added[0].ItemName != "eggs" {
		t.Fatalf("Expected eggs added, got %+v", changes.Added)
	}
}

// TestComparePresenceThreshold verifies low-confidence items never count as present
func TestComparePresenceThreshold(t *testing.T) {
	comparator := NewFrameComparator(0.5)
	now := time.Now()

	// Item present at low confidence in the previous frame must not trigger
	// a removal when it disappears
	history := []models.Frame{
		makeFrame("f1", now, observed("ghost", models.CategoryOther, "back", 0.4)),
	}
	current := makeFrame("f2", now.Add(time.Minute))

	changes := comparator.Compare(current, history)
	if len(changes.Removed) != 0 {
		t.Errorf("Sub-threshold item must not produce a removal: %+v", changes.Removed)
	}
}

// TestCompareDetectsMovement verifies location changes are reported
func TestCompareDetectsMovement(t *testing.T) {
	comparator := NewFrameComparator(0.5)
	now := time.Now()

	history := []models.Frame{
		makeFrame("f1", now, observed("butter", models.CategoryDairy, "door", 0.9)),
	}
	current := makeFrame("f2", now.Add(time.Minute),
		observed("butter", models.CategoryDairy, "middle shelf", 0.85),
	)

	changes := comparator.Compare(current, history)

	if len(changes.Moved) != 1 {
		t.Fatalf("Expected 1 movement, got %d", len(changes.Moved))
	}
	moved := changes.Moved[0]
	if moved.FromLocation != "door" || moved.ToLocation != "middle shelf" {
		t.Errorf("Expected door -> middle shelf, got %s -> %s", moved.FromLocation, moved.ToLocation)
	}
}

// TestCompareUnknownLocationNoMovement verifies unknown locations never count as moves
func TestCompareUnknownLocationNoMovement(t *testing.T) {
	comparator := NewFrameComparator(0.5)
	now := time.Now()

	history := []models.Frame{
		makeFrame("f1", now, observed("jam", models.CategoryCondiments, "", 0.9)),
	}
	current := makeFrame("f2", now.Add(time.Minute),
		observed("jam", models.CategoryCondiments, "door", 0.9),
	)

	changes := comparator.Compare(current, history)
	if len(changes.Moved) != 0 {
		t.Errorf("Movement from unknown location must be ignored: %+v", changes.Moved)
	}
}

// TestConsumptionConfidence verifies the frame-count scaling and the
// consumable category bonus
func TestConsumptionConfidence(t *testing.T) {
	comparator := NewFrameComparator(0.5)
	now := time.Now()

	tests := []struct {
		name               string
		category           models.ItemCategory
		framesPresent      int
		expectConsumption  bool
		expectedConfidence float64
	}{
		{
			name:              "single appearance is not consumption",
			category:          models.CategoryDairy,
			framesPresent:     1,
			expectConsumption: false,
		},
		{
			name:               "two frames, consumable",
			category:           models.CategoryDairy,
			framesPresent:      2,
			expectConsumption:  true,
			expectedConfidence: 0.8, // 0.5 + 0.2 + 0.1 bonus
		},
		{
			name:               "three frames, non-consumable",
			category:           models.CategoryCondiments,
			framesPresent:      3,
			expectConsumption:  true,
			expectedConfidence: 0.8, // 0.5 + 0.3, no bonus
		},
		{
			name:               "many frames caps before the bonus",
			category:           models.CategoryProduce,
			framesPresent:      8,
			expectConsumption:  true,
			expectedConfidence: 1.0, // min(0.95, 0.5+0.8) + 0.1, clamped
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := make([]models.Frame, 0, tt.framesPresent)
			for i := 0; i < tt.framesPresent; i++ {
				history = append(history, makeFrame("f", now.Add(time.Duration(i)*time.Minute),
					observed("yogurt", tt.category, "top shelf", 0.9)))
			}
			current := makeFrame("current", now.Add(time.Hour))

			changes := comparator.Compare(current, history)

			if len(changes.Removed) != 1 {
				t.Fatalf("Expected 1 removal, got %d", len(changes.Removed))
			}
			if !tt.expectConsumption {
				if len(changes.Consumption) != 0 {
					t.Fatalf("Expected no consumption signal, got %+v", changes.Consumption)
				}
				return
			}
			if len(changes.Consumption) != 1 {
				t.Fatalf("Expected consumption signal, got none")
			}
			got := changes.Consumption[0].ConsumptionConfidence
			if math.Abs(got-tt.expectedConfidence) > 0.001 {
				t.Errorf("Expected confidence %.2f, got %.2f", tt.expectedConfidence, got)
			}
		})
	}
}

// TestCompareMilkScenario walks the canonical appear-then-disappear sequence
func TestCompareMilkScenario(t *testing.T) {
	comparator := NewFrameComparator(0.5)
	now := time.Now()
	var history []models.Frame

	// Milk appears
	frame1 := makeFrame("f1", now, observed("milk", models.CategoryDairy, "top shelf", 0.9))
	changes := comparator.Compare(frame1, history)
	if len(changes.Added) != 1 || changes.Added[0].ItemName != "milk" {
		t.Fatalf("Frame 1: expected milk addition, got %+v", changes.Added)
	}
	history = append(history, frame1)

	// Milk stays put
	frame2 := makeFrame("f2", now.Add(15*time.Minute), observed("milk", models.CategoryDairy, "top shelf", 0.88))
	changes = comparator.Compare(frame2, history)
	if !changes.Empty() {
		t.Fatalf("Frame 2: expected no changes, got %+v", changes)
	}
	history = append(history, frame2)

	// Milk disappears after two stable frames
	frame3 := makeFrame("f3", now.Add(30*time.Minute))
	changes = comparator.Compare(frame3, history)

	if len(changes.Removed) != 1 {
		t.Fatalf("Frame 3: expected removal, got %+v", changes.Removed)
	}
	if changes.Removed[0].FramesPresent != 2 {
		t.Errorf("Expected 2 frames present, got %d", changes.Removed[0].FramesPresent)
	}
	if len(changes.Consumption) != 1 {
		t.Fatalf("Frame 3: expected consumption signal")
	}
	if math.Abs(changes.Consumption[0].ConsumptionConfidence-0.8) > 0.001 {
		t.Errorf("Expected consumption confidence 0.8, got %.2f", changes.Consumption[0].ConsumptionConfidence)
	}
	t.Logf("Milk consumption detected: %s", changes.Consumption[0].Reasoning)
}
