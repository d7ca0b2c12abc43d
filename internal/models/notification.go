package models

import (
	"encoding/json"
	"time"
)

// NotificationType classifies a routed notification
type NotificationType string

const (
	NotificationPerishableExpiry     NotificationType = "perishable_expiry"
	NotificationProcurementRequired  NotificationType = "procurement_required"
	NotificationHardwareDisconnected NotificationType = "hardware_disconnected"
	NotificationConfidenceDegraded   NotificationType = "confidence_degraded"
)

// NotificationSeverity drives channel selection
type NotificationSeverity string

const (
	SeverityLow    NotificationSeverity = "low"
	SeverityMedium NotificationSeverity = "medium"
	SeverityHigh   NotificationSeverity = "high"
	SeverityUrgent NotificationSeverity = "urgent"
)

// NotificationChannel identifies a delivery channel
type NotificationChannel string

const (
	ChannelInApp     NotificationChannel = "in_app"
	ChannelPush      NotificationChannel = "push"
	ChannelAssistant NotificationChannel = "assistant"
)

// DeliveryStatus tracks the outcome of routing a notification
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Notification is the record created by the router once the throttle check
// passes. Immutable except for delivery bookkeeping and read-state.
type Notification struct {
	ID                string                `json:"id"`
	HouseholdID       string                `json:"household_id"`
	UserID            string                `json:"user_id,omitempty"`
	Type              NotificationType      `json:"type"`
	Severity          NotificationSeverity  `json:"severity"`
	Title             string                `json:"title"`
	Message           string                `json:"message"`
	Context           EventPayload          `json:"context,omitempty"`
	ChannelsAttempted []NotificationChannel `json:"channels_attempted"`
	ChannelsDelivered []NotificationChannel `json:"channels_delivered"`
	DeliveryStatus    DeliveryStatus        `json:"delivery_status"`
	CreatedAt         time.Time             `json:"created_at"`
	DeliveredAt       *time.Time            `json:"delivered_at,omitempty"`
	IsRead            bool                  `json:"is_read"`
	ReadAt            *time.Time            `json:"read_at,omitempty"`
}

// UnmarshalJSON decodes a notification from the wire. The context payload is
// producer-typed and cannot be decoded into the interface field, so it is
// dropped; cross-process consumers get every other field intact.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	aux := struct {
		*alias
		Context json.RawMessage `json:"context,omitempty"`
	}{alias: (*alias)(n)}
	return json.Unmarshal(data, &aux)
}
