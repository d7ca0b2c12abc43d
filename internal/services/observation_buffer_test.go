package services

import (
	"fmt"
	"testing"
	"time"

	"domus/internal/models"
)

func makeFrame(id string, capturedAt time.Time, items ...models.ObservedItem) models.Frame {
	return models.Frame{ID: id, CapturedAt: capturedAt, Items: items}
}

// TestObservationBufferEviction verifies the oldest frame is evicted at capacity
func TestObservationBufferEviction(t *testing.T) {
	buffer := NewObservationBuffer(3)
	now := time.Now()

	for i := 0; i < 5; i++ {
		buffer.Append(makeFrame(fmt.Sprintf("f%d", i), now.Add(time.Duration(i)*time.Minute)))
	}

	if buffer.Len() != 3 {
		t.Fatalf("Expected 3 frames after eviction, got %d", buffer.Len())
	}

	frames := buffer.Snapshot()
	if frames[0].ID != "f2" || frames[2].ID != "f4" {
		t.Errorf("Expected frames f2..f4 oldest-first, got %s..%s", frames[0].ID, frames[2].ID)
	}
}

// TestObservationBufferOrdering verifies oldest-first iteration order
func TestObservationBufferOrdering(t *testing.T) {
	buffer := NewObservationBuffer(10)
	now := time.Now()

	buffer.Append(makeFrame("first", now))
	buffer.Append(makeFrame("second", now.Add(time.Minute)))
	buffer.Append(makeFrame("third", now.Add(2*time.Minute)))

	frames := buffer.Snapshot()
	expected := []string{"first", "second", "third"}
	for i, id := range expected {
		if frames[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, frames[i].ID)
		}
	}

	latest, ok := buffer.Latest()
	if !ok || latest.ID != "third" {
		t.Errorf("Expected latest frame third, got %v (ok=%v)", latest.ID, ok)
	}
}

// TestObservationBufferDefaultCapacity verifies the capacity fallback
func TestObservationBufferDefaultCapacity(t *testing.T) {
	buffer := NewObservationBuffer(0)
	if buffer.Capacity() != DefaultBufferCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultBufferCapacity, buffer.Capacity())
	}
}

// TestObservationBufferSnapshotIsolation verifies the snapshot is a copy
func TestObservationBufferSnapshotIsolation(t *testing.T) {
	buffer := NewObservationBuffer(5)
	buffer.Append(makeFrame("a", time.Now()))

	snapshot := buffer.Snapshot()
	snapshot[0].ID = "mutated"

	frames := buffer.Snapshot()
	if frames[0].ID != "a" {
		t.Errorf("Buffer frame mutated through snapshot: got %s", frames[0].ID)
	}
}
