package services

import (
	"context"
	"testing"
	"time"
)

// TestShouldAcceptFirstSighting verifies the first call for a key is accepted
func TestShouldAcceptFirstSighting(t *testing.T) {
	manager := NewDebounceManager(NewMemoryThrottleStore(), 0, 0)
	ctx := context.Background()

	accept, err := manager.ShouldAccept(ctx, "snapshot:hh-1", time.Minute)
	if err != nil {
		t.Fatalf("ShouldAccept failed: %v", err)
	}
	if !accept {
		t.Error("First sighting must be accepted")
	}
}

// TestShouldAcceptWithinInterval verifies rejection inside the window and
// that rejection does not reset the timer
func TestShouldAcceptWithinInterval(t *testing.T) {
	manager := NewDebounceManager(NewMemoryThrottleStore(), 0, 0)
	ctx := context.Background()

	if accept, _ := manager.ShouldAccept(ctx, "k", time.Hour); !accept {
		t.Fatal("First call must be accepted")
	}
	if accept, _ := manager.ShouldAccept(ctx, "k", time.Hour); accept {
		t.Error("Second call inside the interval must be rejected")
	}

	// The rejected call must not have refreshed the window
	remaining1, waiting, err := manager.TimeUntilAllowed(ctx, "k", time.Hour)
	if err != nil || !waiting {
		t.Fatalf("Expected a pending wait, got waiting=%v err=%v", waiting, err)
	}
	manager.ShouldAccept(ctx, "k", time.Hour)
	remaining2, _, _ := manager.TimeUntilAllowed(ctx, "k", time.Hour)
	if remaining2 > remaining1 {
		t.Errorf("Rejection refreshed the window: %v > %v", remaining2, remaining1)
	}
}

// TestShouldAcceptAfterInterval verifies acceptance once the window elapses
func TestShouldAcceptAfterInterval(t *testing.T) {
	manager := NewDebounceManager(NewMemoryThrottleStore(), 0, 0)
	ctx := context.Background()

	if accept, _ := manager.ShouldAccept(ctx, "k", 20*time.Millisecond); !accept {
		t.Fatal("First call must be accepted")
	}
	time.Sleep(30 * time.Millisecond)
	if accept, _ := manager.ShouldAccept(ctx, "k", 20*time.Millisecond); !accept {
		t.Error("Call after the interval must be accepted")
	}
}

// TestTimeUntilAllowedSideEffectFree verifies the query never records
func TestTimeUntilAllowedSideEffectFree(t *testing.T) {
	manager := NewDebounceManager(NewMemoryThrottleStore(), 0, 0)
	ctx := context.Background()

	// Querying an unseen key changes nothing
	if _, waiting, _ := manager.TimeUntilAllowed(ctx, "k", time.Hour); waiting {
		t.Error("Unseen key must be immediately allowed")
	}
	if accept, _ := manager.ShouldAccept(ctx, "k", time.Hour); !accept {
		t.Error("Query must not have consumed the first acceptance")
	}
}

// TestResetClearsKey verifies Reset reopens the gate for one key only
func TestResetClearsKey(t *testing.T) {
	manager := NewDebounceManager(NewMemoryThrottleStore(), 0, 0)
	ctx := context.Background()

	manager.ShouldAccept(ctx, "a", time.Hour)
	manager.ShouldAccept(ctx, "b", time.Hour)

	if err := manager.Reset(ctx, "a"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if accept, _ := manager.ShouldAccept(ctx, "a", time.Hour); !accept {
		t.Error("Reset key must be accepted again")
	}
	if accept, _ := manager.ShouldAccept(ctx, "b", time.Hour); accept {
		t.Error("Untouched key must stay throttled")
	}
}

// TestClearAll verifies every key reopens
func TestClearAll(t *testing.T) {
	manager := NewDebounceManager(NewMemoryThrottleStore(), 0, 0)
	ctx := context.Background()

	manager.ShouldAccept(ctx, "a", time.Hour)
	manager.ShouldAccept(ctx, "b", time.Hour)

	if err := manager.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	for _, key := range []string{"a", "b"} {
		if accept, _ := manager.ShouldAccept(ctx, key, time.Hour); !accept {
			t.Errorf("Key %s must be accepted after ClearAll", key)
		}
	}
}

// TestNamedPolicies verifies the snapshot and expiry policies key
// independently per household and item
func TestNamedPolicies(t *testing.T) {
	manager := NewDebounceManager(NewMemoryThrottleStore(), 900*time.Second, 86400*time.Second)
	ctx := context.Background()

	if accept, _ := manager.AcceptSnapshot(ctx, "hh-1"); !accept {
		t.Fatal("First snapshot must be accepted")
	}
	if accept, _ := manager.AcceptSnapshot(ctx, "hh-1"); accept {
		t.Error("Second snapshot for the same household must be debounced")
	}
	if accept, _ := manager.AcceptSnapshot(ctx, "hh-2"); !accept {
		t.Error("Other households are keyed independently")
	}

	if accept, _ := manager.AcceptExpiryNotification(ctx, "hh-1", "milk"); !accept {
		t.Fatal("First expiry notification must be accepted")
	}
	if accept, _ := manager.AcceptExpiryNotification(ctx, "hh-1", "milk"); accept {
		t.Error("Repeat expiry notification for the same item must be throttled")
	}
	if accept, _ := manager.AcceptExpiryNotification(ctx, "hh-1", "eggs"); !accept {
		t.Error("Different items are keyed independently")
	}

	// Snapshot and expiry namespaces never collide
	if _, waiting, _ := manager.SnapshotRetryAfter(ctx, "hh-1"); !waiting {
		t.Error("Snapshot debounce should still be pending for hh-1")
	}
}
