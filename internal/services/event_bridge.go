package services

import (
	"context"
	"encoding/json"
	"log"

	"domus/internal/models"
)

const eventBridgeChannel = "domus:events"

// EventBridge mirrors the local event bus over Redis pub/sub so multiple
// instances share one event stream. Outbound: every local event is published
// to the shared channel. Inbound: events from other instances are fanned out
// to this instance's WebSocket connections without re-entering the local
// bus, which keeps the mirror loop-free.
type EventBridge struct {
	redis       *RedisService
	connections *ConnectionManager
	instanceID  string
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewEventBridge creates a bridge over an established Redis connection
func NewEventBridge(redisService *RedisService, connections *ConnectionManager, instanceID string) *EventBridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventBridge{
		redis:       redisService,
		connections: connections,
		instanceID:  instanceID,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// bridgeEnvelope wraps an event with its source instance so receivers can
// drop their own publications
type bridgeEnvelope struct {
	InstanceID string       `json:"instance_id"`
	Event      models.Event `json:"event"`
}

// Register attaches the outbound mirror as a wildcard bus subscriber
func (b *EventBridge) Register(bus *EventBus) {
	bus.SubscribeAll(b.publishOutbound)
}

func (b *EventBridge) publishOutbound(event models.Event) error {
	data, err := json.Marshal(bridgeEnvelope{InstanceID: b.instanceID, Event: event})
	if err != nil {
		return err
	}
	if err := b.redis.Publish(b.ctx, eventBridgeChannel, data); err != nil {
		// Mirror failures must not fail local handlers
		log.Printf("⚠️ [BRIDGE] failed to mirror %s to Redis: %v", event.Type, err)
	}
	return nil
}

// Start begins consuming the shared channel
func (b *EventBridge) Start() error {
	pubsub := b.redis.Subscribe(b.ctx, eventBridgeChannel)
	if _, err := pubsub.Receive(b.ctx); err != nil {
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.handleInbound([]byte(msg.Payload))
			}
		}
	}()

	log.Printf("✅ [BRIDGE] mirroring events on %s (instance: %s)", eventBridgeChannel, b.instanceID)
	return nil
}

func (b *EventBridge) handleInbound(data []byte) {
	var envelope bridgeEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		log.Printf("⚠️ [BRIDGE] dropping undecodable message: %v", err)
		return
	}
	if envelope.InstanceID == b.instanceID {
		return
	}
	if envelope.Event.HouseholdID == "" {
		return
	}
	b.connections.Broadcast(envelope.Event.HouseholdID, envelope.Event)
}

// Stop ends the inbound consumer
func (b *EventBridge) Stop() {
	b.cancel()
}
