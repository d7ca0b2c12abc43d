package models

import "time"

// IntentType classifies a domain finding for notification routing
type IntentType string

const (
	IntentDetectedExpiry       IntentType = "detected_expiry"
	IntentExpiryWarning        IntentType = "expiry_warning"
	IntentRequireProcurement   IntentType = "require_procurement"
	IntentHardwareDisconnected IntentType = "hardware_disconnected"
	IntentConfidenceDegraded   IntentType = "confidence_degraded"
)

// Intent is a structured finding produced by a detector (comparator, decay
// sweep, expiry check) and consumed exactly once by the notification router.
// SourceID carries the id of the originating event.
type Intent struct {
	Type        IntentType   `json:"intent_type"`
	HouseholdID string       `json:"household_id"`
	UserID      string       `json:"user_id,omitempty"`
	Confidence  float64      `json:"confidence"`
	Reasoning   string       `json:"reasoning,omitempty"`
	SourceID    string       `json:"source_id,omitempty"`
	Payload     EventPayload `json:"payload"`
	CreatedAt   time.Time    `json:"created_at"`
}
