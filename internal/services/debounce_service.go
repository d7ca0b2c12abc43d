package services

import (
	"context"
	"fmt"
	"log"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Named policy defaults. Server time is authoritative for all debounce logic.
const (
	// DefaultSnapshotDebounce limits snapshot ingestion per household
	DefaultSnapshotDebounce = 900 * time.Second

	// DefaultExpiryThrottle limits expiry notifications per household+item
	DefaultExpiryThrottle = 86400 * time.Second

	// storeCleanupInterval is how often the memory store sweeps expired keys
	storeCleanupInterval = 10 * time.Minute
)

// ThrottleStore persists last-accepted timestamps per key. The in-memory
// implementation backs single-process deployments; the Redis implementation
// externalizes the map for multi-process consistency.
type ThrottleStore interface {
	// LastAccepted returns the recorded acceptance time for a key, if any
	LastAccepted(ctx context.Context, key string) (time.Time, bool, error)
	// Record stores an acceptance; interval bounds how long the record must
	// survive (stores may keep it longer)
	Record(ctx context.Context, key string, at time.Time, interval time.Duration) error
	// Reset forgets a key
	Reset(ctx context.Context, key string) error
	// ClearAll forgets every key
	ClearAll(ctx context.Context) error
}

// DebounceManager is a keyed rate gate shared process-wide across households.
// The first sighting of a key is accepted and recorded; later calls are
// accepted only once the minimum interval has elapsed since the last
// acceptance. Rejection does not update the recorded time.
type DebounceManager struct {
	store            ThrottleStore
	snapshotDebounce time.Duration
	expiryThrottle   time.Duration
}

// NewDebounceManager creates a manager over the given store with the named
// policy intervals
func NewDebounceManager(store ThrottleStore, snapshotDebounce, expiryThrottle time.Duration) *DebounceManager {
	if snapshotDebounce <= 0 {
		snapshotDebounce = DefaultSnapshotDebounce
	}
	if expiryThrottle <= 0 {
		expiryThrottle = DefaultExpiryThrottle
	}
	return &DebounceManager{
		store:            store,
		snapshotDebounce: snapshotDebounce,
		expiryThrottle:   expiryThrottle,
	}
}

// ShouldAccept reports whether an action keyed by key may proceed, recording
// the acceptance time when it may
func (m *DebounceManager) ShouldAccept(ctx context.Context, key string, minInterval time.Duration) (bool, error) {
	now := time.Now().UTC()

	last, found, err := m.store.LastAccepted(ctx, key)
	if err != nil {
		return false, fmt.Errorf("throttle store lookup for %s: %w", key, err)
	}

	if !found {
		if err := m.store.Record(ctx, key, now, minInterval); err != nil {
			return false, fmt.Errorf("throttle store record for %s: %w", key, err)
		}
		return true, nil
	}

	elapsed := now.Sub(last)
	if elapsed >= minInterval {
		if err := m.store.Record(ctx, key, now, minInterval); err != nil {
			return false, fmt.Errorf("throttle store record for %s: %w", key, err)
		}
		return true, nil
	}

	log.Printf("⏱️ [DEBOUNCE] %s rejected, only %.1fs since last (need %.0fs)",
		key, elapsed.Seconds(), minInterval.Seconds())
	return false, nil
}

// TimeUntilAllowed is a side-effect-free query returning the remaining wait
// for a key. The second return is false when acceptance would succeed now.
func (m *DebounceManager) TimeUntilAllowed(ctx context.Context, key string, minInterval time.Duration) (time.Duration, bool, error) {
	last, found, err := m.store.LastAccepted(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("throttle store lookup for %s: %w", key, err)
	}
	if !found {
		return 0, false, nil
	}

	remaining := minInterval - time.Now().UTC().Sub(last)
	if remaining <= 0 {
		return 0, false, nil
	}
	return remaining, true, nil
}

// Reset forgets the debounce timer for a key
func (m *DebounceManager) Reset(ctx context.Context, key string) error {
	return m.store.Reset(ctx, key)
}

// ClearAll forgets every debounce timer
func (m *DebounceManager) ClearAll(ctx context.Context) error {
	return m.store.ClearAll(ctx)
}

// AcceptSnapshot applies the snapshot-ingestion debounce for a household
func (m *DebounceManager) AcceptSnapshot(ctx context.Context, householdID string) (bool, error) {
	return m.ShouldAccept(ctx, snapshotKey(householdID), m.snapshotDebounce)
}

// SnapshotRetryAfter returns the remaining ingest-debounce wait for a household
func (m *DebounceManager) SnapshotRetryAfter(ctx context.Context, householdID string) (time.Duration, bool, error) {
	return m.TimeUntilAllowed(ctx, snapshotKey(householdID), m.snapshotDebounce)
}

// AcceptExpiryNotification applies the per-item expiry-notification throttle
func (m *DebounceManager) AcceptExpiryNotification(ctx context.Context, householdID, itemID string) (bool, error) {
	return m.ShouldAccept(ctx, expiryKey(householdID, itemID), m.expiryThrottle)
}

func snapshotKey(householdID string) string {
	return "snapshot:" + householdID
}

func expiryKey(householdID, itemID string) string {
	return "expiry_notification:" + householdID + ":" + itemID
}

// MemoryThrottleStore keeps last-accepted timestamps in an expiring in-memory
// cache. go-cache guards its map with a single lock, satisfying the shared
// process-wide access pattern.
type MemoryThrottleStore struct {
	cache *gocache.Cache
}

// NewMemoryThrottleStore creates the in-memory store
func NewMemoryThrottleStore() *MemoryThrottleStore {
	return &MemoryThrottleStore{
		cache: gocache.New(gocache.NoExpiration, storeCleanupInterval),
	}
}

// LastAccepted returns the recorded acceptance time for a key
func (s *MemoryThrottleStore) LastAccepted(_ context.Context, key string) (time.Time, bool, error) {
	value, found := s.cache.Get(key)
	if !found {
		return time.Time{}, false, nil
	}
	at, ok := value.(time.Time)
	if !ok {
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// Record stores an acceptance. The entry outlives the interval by one window
// so TimeUntilAllowed stays answerable right after expiry.
func (s *MemoryThrottleStore) Record(_ context.Context, key string, at time.Time, interval time.Duration) error {
	s.cache.Set(key, at, 2*interval)
	return nil
}

// Reset forgets a key
func (s *MemoryThrottleStore) Reset(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// ClearAll forgets every key
func (s *MemoryThrottleStore) ClearAll(_ context.Context) error {
	s.cache.Flush()
	return nil
}
