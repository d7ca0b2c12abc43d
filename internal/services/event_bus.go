package services

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"domus/internal/models"
)

// Event bus defaults
const (
	// DefaultDedupCapacity bounds the processed-id cache
	DefaultDedupCapacity = 10000

	// DefaultDedupTrimTo is the number of newest ids kept after an overflow trim
	DefaultDedupTrimTo = 5000
)

var (
	// ErrBusStopped is returned when publishing to a stopped bus
	ErrBusStopped = errors.New("event bus stopped")
)

// EventHandler processes one event. A returned error triggers exactly one
// synchronous retry before the delivery is dropped.
type EventHandler func(event models.Event) error

// HandlerOutcome is the typed result of delivering one event to one handler:
// either delivered (possibly on the retry) or dropped with the final error.
type HandlerOutcome struct {
	Delivered bool
	Attempts  int
	Reason    error
}

// SubscriberID identifies a registered handler for unsubscription
type SubscriberID uint64

type subscription struct {
	id      SubscriberID
	handler EventHandler
}

// EventBus is a single in-process asynchronous broker for typed events.
// Publish enqueues and never blocks: the pending queue is unbounded, so a
// handler may publish follow-up events from inside the dispatch loop without
// wedging the bus. One background dispatch goroutine drains the queue in
// publish order and invokes every matching subscriber plus every wildcard
// subscriber, in registration order. Delivery is at-least-once with a bounded
// dedup cache of recently dispatched event ids, so a republished duplicate id
// is a no-op.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[models.EventType][]subscription
	wildcards   []subscription
	nextSubID   SubscriberID

	queueMu   sync.Mutex
	queueCond *sync.Cond
	pending   []models.Event
	stopped   bool
	wg        sync.WaitGroup

	processed      map[string]struct{}
	processedOrder []string
	dedupCapacity  int
	dedupTrimTo    int

	running bool
}

// NewEventBus creates a bus with the given dedup cache bounds. Non-positive
// values fall back to the defaults.
func NewEventBus(dedupCapacity, dedupTrimTo int) *EventBus {
	if dedupCapacity <= 0 {
		dedupCapacity = DefaultDedupCapacity
	}
	if dedupTrimTo <= 0 || dedupTrimTo > dedupCapacity {
		dedupTrimTo = DefaultDedupTrimTo
	}
	bus := &EventBus{
		subscribers:   make(map[models.EventType][]subscription),
		processed:     make(map[string]struct{}),
		dedupCapacity: dedupCapacity,
		dedupTrimTo:   dedupTrimTo,
	}
	bus.queueCond = sync.NewCond(&bus.queueMu)
	return bus
}

// Start launches the dispatch loop. Idempotent.
func (b *EventBus) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.wg.Add(1)
	go b.dispatchLoop()
	log.Println("🚌 [EVENT-BUS] Dispatch loop started")
}

// Stop cancels the dispatch loop's queue wait. The batch already dequeued and
// mid-dispatch completes; events still queued are discarded.
func (b *EventBus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	b.queueMu.Lock()
	b.stopped = true
	b.queueCond.Broadcast()
	b.queueMu.Unlock()

	b.wg.Wait()
	log.Println("🚌 [EVENT-BUS] Stopped")
}

// Subscribe registers a handler for a specific event type and returns an id
// for unsubscription
func (b *EventBus) Subscribe(eventType models.EventType, handler EventHandler) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSubID++
	id := b.nextSubID
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll registers a wildcard handler invoked for every event type
func (b *EventBus) SubscribeAll(handler EventHandler) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSubID++
	id := b.nextSubID
	b.wildcards = append(b.wildcards, subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a handler from future dispatch. In-flight dispatch to
// that handler is not cancelled.
func (b *EventBus) Unsubscribe(eventType models.EventType, id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
	for i, sub := range b.wildcards {
		if sub.id == id {
			b.wildcards = append(b.wildcards[:i:i], b.wildcards[i+1:]...)
			return
		}
	}
}

// Publish validates and enqueues an event. Non-conforming payloads fail fast;
// a stopped bus returns ErrBusStopped. Publish never blocks, so handlers may
// publish from inside dispatch.
func (b *EventBus) Publish(event models.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("rejecting event: %w", err)
	}

	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if b.stopped {
		return ErrBusStopped
	}
	b.pending = append(b.pending, event)
	b.queueCond.Signal()
	return nil
}

// dispatchLoop drains the pending queue in publish order, one batch at a time.
// No lock is held while handlers run, so handler republishes only append.
func (b *EventBus) dispatchLoop() {
	defer b.wg.Done()
	for {
		b.queueMu.Lock()
		for len(b.pending) == 0 && !b.stopped {
			b.queueCond.Wait()
		}
		if b.stopped {
			b.queueMu.Unlock()
			return
		}
		batch := b.pending
		b.pending = nil
		b.queueMu.Unlock()

		for _, event := range batch {
			b.dispatch(event)
		}
	}
}

// dispatch delivers one event to all matching handlers. Duplicate event ids
// are dropped here so at-least-once publishing never double-processes.
func (b *EventBus) dispatch(event models.Event) {
	if !b.markProcessed(event.EventID) {
		log.Printf("🚌 [EVENT-BUS] Skipping duplicate event %s (%s)", event.EventID, event.Type)
		return
	}

	handlers := b.handlersFor(event.Type)
	for _, sub := range handlers {
		outcome := deliverWithRetry(sub.handler, event)
		if !outcome.Delivered {
			log.Printf("⚠️ [EVENT-BUS] Handler dropped %s event %s after %d attempts: %v",
				event.Type, event.EventID, outcome.Attempts, outcome.Reason)
			if m := GetMetrics(); m != nil {
				m.RecordHandlerFailure(string(event.Type))
			}
		}
	}
}

// handlersFor snapshots the subscriber list under the lock so a handler
// unsubscribing mid-dispatch cannot corrupt iteration
func (b *EventBus) handlersFor(eventType models.EventType) []subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[eventType]
	out := make([]subscription, 0, len(subs)+len(b.wildcards))
	out = append(out, subs...)
	out = append(out, b.wildcards...)
	return out
}

// markProcessed records an event id in the dedup cache, returning false for
// duplicates. On overflow the cache is trimmed to the newest entries.
func (b *EventBus) markProcessed(eventID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, seen := b.processed[eventID]; seen {
		return false
	}

	b.processed[eventID] = struct{}{}
	b.processedOrder = append(b.processedOrder, eventID)

	if len(b.processedOrder) > b.dedupCapacity {
		keepFrom := len(b.processedOrder) - b.dedupTrimTo
		for _, old := range b.processedOrder[:keepFrom] {
			delete(b.processed, old)
		}
		b.processedOrder = append([]string(nil), b.processedOrder[keepFrom:]...)
	}
	return true
}

// deliverWithRetry runs the explicit two-attempt loop: one delivery, one
// synchronous retry, then drop. A failing handler never blocks or drops other
// handlers' delivery of the same event.
func deliverWithRetry(handler EventHandler, event models.Event) HandlerOutcome {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := safeInvoke(handler, event); err != nil {
			lastErr = err
			continue
		}
		return HandlerOutcome{Delivered: true, Attempts: attempt}
	}
	return HandlerOutcome{Delivered: false, Attempts: 2, Reason: lastErr}
}

// safeInvoke converts a handler panic into an error so one bad subscriber
// cannot take down the dispatch loop
func safeInvoke(handler EventHandler, event models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(event)
}
