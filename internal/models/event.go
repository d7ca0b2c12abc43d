package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the typed event categories carried by the bus
type EventType string

const (
	EventInventoryUpdated     EventType = "inventory.updated"
	EventConfidenceDegraded   EventType = "inventory.confidence_degraded"
	EventItemAdded            EventType = "intent.item_added"
	EventItemRemoved          EventType = "intent.item_removed"
	EventItemMoved            EventType = "intent.item_moved"
	EventConsumptionLikely    EventType = "intent.consumption_likely"
	EventExpiryWarning        EventType = "intent.expiry_warning"
	EventDetectedExpiry       EventType = "intent.detected_expiry"
	EventRequireProcurement   EventType = "intent.require_procurement"
	EventNotificationCreated  EventType = "notification.created"
	EventHardwareDisconnected EventType = "hardware.disconnected"
)

// EventPayload is the tagged-union contract for bus event payloads. Each
// payload declares the single event type it may travel under, so handlers can
// type-switch exhaustively instead of probing map keys.
type EventPayload interface {
	EventType() EventType
}

// Event is the unit carried by the bus. EventID doubles as the dedup key.
type Event struct {
	EventID     string       `json:"event_id"`
	Type        EventType    `json:"type"`
	Timestamp   time.Time    `json:"ts"`
	Source      string       `json:"source"`
	HouseholdID string       `json:"household_id,omitempty"`
	Payload     EventPayload `json:"payload"`
}

// NewEvent builds an event with a fresh id and the payload's declared type
func NewEvent(source, householdID string, payload EventPayload) Event {
	return Event{
		EventID:     uuid.NewString(),
		Type:        payload.EventType(),
		Timestamp:   time.Now().UTC(),
		Source:      source,
		HouseholdID: householdID,
		Payload:     payload,
	}
}

// Validate rejects events whose payload is missing or travels under the wrong
// type. Publish fails fast on these instead of letting handlers guess.
func (e Event) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event missing event_id")
	}
	if e.Payload == nil {
		return fmt.Errorf("event %s has no payload", e.Type)
	}
	if e.Payload.EventType() != e.Type {
		return fmt.Errorf("payload type %s does not match event type %s", e.Payload.EventType(), e.Type)
	}
	return nil
}

// InventoryUpdatedPayload summarizes one processed snapshot
type InventoryUpdatedPayload struct {
	TotalItems   int      `json:"total_items"`
	ItemsAdded   int      `json:"items_added"`
	ItemsRemoved int      `json:"items_removed"`
	ItemsMoved   int      `json:"items_moved"`
	Items        []string `json:"items"`
	Confidence   float64  `json:"confidence"`
}

func (InventoryUpdatedPayload) EventType() EventType { return EventInventoryUpdated }

// ItemAddedPayload reports a new item detected between frames
type ItemAddedPayload struct {
	ItemName   string       `json:"item_name"`
	Location   string       `json:"location"`
	Category   ItemCategory `json:"category"`
	Confidence float64      `json:"confidence"`
}

func (ItemAddedPayload) EventType() EventType { return EventItemAdded }

// ItemRemovedPayload reports an item that disappeared after stable presence
type ItemRemovedPayload struct {
	ItemName       string  `json:"item_name"`
	LastLocation   string  `json:"last_location"`
	LastConfidence float64 `json:"last_confidence"`
	FramesPresent  int     `json:"frames_present"`
}

func (ItemRemovedPayload) EventType() EventType { return EventItemRemoved }

// ItemMovedPayload reports a location change for an item present in both frames
type ItemMovedPayload struct {
	ItemName     string `json:"item_name"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
}

func (ItemMovedPayload) EventType() EventType { return EventItemMoved }

// ConsumptionLikelyPayload reports a removal that looks like consumption
type ConsumptionLikelyPayload struct {
	ItemName              string       `json:"item_name"`
	Category              ItemCategory `json:"category"`
	ConsumptionConfidence float64      `json:"consumption_confidence"`
	Reasoning             string       `json:"reasoning"`
}

func (ConsumptionLikelyPayload) EventType() EventType { return EventConsumptionLikely }

// ExpiringItem is one entry in an expiry warning or detection
type ExpiringItem struct {
	Name            string       `json:"name"`
	Category        ItemCategory `json:"category"`
	DaysUntilExpiry int          `json:"days_until_expiry,omitempty"`
	DaysExpired     int          `json:"days_expired,omitempty"`
}

// ExpiryWarningPayload lists items expiring within the warning window
type ExpiryWarningPayload struct {
	Count         int            `json:"count"`
	ExpiringItems []ExpiringItem `json:"expiring_items"`
}

func (ExpiryWarningPayload) EventType() EventType { return EventExpiryWarning }

// DetectedExpiryPayload lists items already past their expiration estimate
type DetectedExpiryPayload struct {
	Count        int            `json:"count"`
	ExpiredItems []ExpiringItem `json:"expired_items"`
}

func (DetectedExpiryPayload) EventType() EventType { return EventDetectedExpiry }

// RequireProcurementPayload lists staples missing from the inventory
type RequireProcurementPayload struct {
	MissingItems []string `json:"missing_items"`
	Category     string   `json:"category"`
}

func (RequireProcurementPayload) EventType() EventType { return EventRequireProcurement }

// ConfidenceDegradedPayload reports an item whose effective confidence fell
// below the stale threshold
type ConfidenceDegradedPayload struct {
	ItemName            string       `json:"item_name"`
	Category            ItemCategory `json:"category"`
	Location            string       `json:"location"`
	EffectiveConfidence float64      `json:"effective_confidence"`
	HoursSinceSeen      float64      `json:"hours_since_seen"`
	VerificationNeeded  bool         `json:"verification_needed"`
}

func (ConfidenceDegradedPayload) EventType() EventType { return EventConfidenceDegraded }

// NotificationCreatedPayload carries the full notification record
type NotificationCreatedPayload struct {
	Notification Notification `json:"notification"`
}

func (NotificationCreatedPayload) EventType() EventType { return EventNotificationCreated }

// HardwareDisconnectedPayload reports a lost device connection
type HardwareDisconnectedPayload struct {
	DeviceType string    `json:"device_type"`
	LastSeen   time.Time `json:"last_seen,omitempty"`
}

func (HardwareDisconnectedPayload) EventType() EventType { return EventHardwareDisconnected }

// eventWire is the JSON wire shape for cross-process transport
type eventWire struct {
	EventID     string          `json:"event_id"`
	Type        EventType       `json:"type"`
	Timestamp   string          `json:"ts"`
	Source      string          `json:"source"`
	HouseholdID string          `json:"household_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// MarshalJSON emits the wire shape with an ISO-8601 timestamp
func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return json.Marshal(eventWire{
		EventID:     e.EventID,
		Type:        e.Type,
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
		Source:      e.Source,
		HouseholdID: e.HouseholdID,
		Payload:     payload,
	})
}

// UnmarshalJSON decodes the wire shape into the concrete payload for the
// event's type. Unknown types are rejected at the boundary.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire eventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
	if err != nil {
		return fmt.Errorf("parse event timestamp: %w", err)
	}

	payload, err := decodePayload(wire.Type, wire.Payload)
	if err != nil {
		return err
	}

	e.EventID = wire.EventID
	e.Type = wire.Type
	e.Timestamp = ts
	e.Source = wire.Source
	e.HouseholdID = wire.HouseholdID
	e.Payload = payload
	return nil
}

func decodePayload(t EventType, raw json.RawMessage) (EventPayload, error) {
	var target EventPayload
	switch t {
	case EventInventoryUpdated:
		target = &InventoryUpdatedPayload{}
	case EventItemAdded:
		target = &ItemAddedPayload{}
	case EventItemRemoved:
		target = &ItemRemovedPayload{}
	case EventItemMoved:
		target = &ItemMovedPayload{}
	case EventConsumptionLikely:
		target = &ConsumptionLikelyPayload{}
	case EventExpiryWarning:
		target = &ExpiryWarningPayload{}
	case EventDetectedExpiry:
		target = &DetectedExpiryPayload{}
	case EventRequireProcurement:
		target = &RequireProcurementPayload{}
	case EventConfidenceDegraded:
		target = &ConfidenceDegradedPayload{}
	case EventNotificationCreated:
		target = &NotificationCreatedPayload{}
	case EventHardwareDisconnected:
		target = &HardwareDisconnectedPayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return derefPayload(target), nil
}

// derefPayload returns the value form so comparisons and type switches see the
// same concrete types producers publish.
func derefPayload(p EventPayload) EventPayload {
	switch v := p.(type) {
	case *InventoryUpdatedPayload:
		return *v
	case *ItemAddedPayload:
		return *v
	case *ItemRemovedPayload:
		return *v
	case *ItemMovedPayload:
		return *v
	case *ConsumptionLikelyPayload:
		return *v
	case *ExpiryWarningPayload:
		return *v
	case *DetectedExpiryPayload:
		return *v
	case *RequireProcurementPayload:
		return *v
	case *ConfidenceDegradedPayload:
		return *v
	case *NotificationCreatedPayload:
		return *v
	case *HardwareDisconnectedPayload:
		return *v
	default:
		return p
	}
}
