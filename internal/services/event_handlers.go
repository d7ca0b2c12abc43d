package services

import (
	"log"
	"sync"

	"domus/internal/models"
)

// EventStats accumulates per-type counters for the analytics endpoint
type EventStats struct {
	mu     sync.RWMutex
	counts map[models.EventType]int64
	total  int64
}

// NewEventStats creates an empty stats accumulator
func NewEventStats() *EventStats {
	return &EventStats{counts: make(map[models.EventType]int64)}
}

// Counts returns a copy of the per-type counters and the total
func (s *EventStats) Counts() (map[models.EventType]int64, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.EventType]int64, len(s.counts))
	for t, c := range s.counts {
		out[t] = c
	}
	return out, s.total
}

func (s *EventStats) record(eventType models.EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[eventType]++
	s.total++
}

// RegisterAnalyticsHandlers attaches the always-on wildcard subscribers:
// Prometheus counters, the in-memory stats accumulator, and the WebSocket
// fan-out that streams every household-scoped event to its live clients.
func RegisterAnalyticsHandlers(bus *EventBus, stats *EventStats, connections *ConnectionManager) {
	bus.SubscribeAll(func(event models.Event) error {
		if m := GetMetrics(); m != nil {
			m.RecordEventDispatched(string(event.Type))
		}
		if stats != nil {
			stats.record(event.Type)
		}
		return nil
	})

	if connections != nil {
		bus.SubscribeAll(func(event models.Event) error {
			if event.HouseholdID == "" {
				return nil
			}
			connections.Broadcast(event.HouseholdID, event)
			return nil
		})
	}

	log.Println("📊 [EVENTS] analytics and stream handlers registered")
}
