package models

import (
	"strings"
	"time"
)

// ItemCategory classifies an observed item for decay and expiry estimation
type ItemCategory string

const (
	CategoryDairy      ItemCategory = "dairy"
	CategoryProduce    ItemCategory = "produce"
	CategoryMeat       ItemCategory = "meat"
	CategorySeafood    ItemCategory = "seafood"
	CategoryBeverages  ItemCategory = "beverages"
	CategoryCondiments ItemCategory = "condiments"
	CategoryLeftovers  ItemCategory = "leftovers"
	CategoryFrozen     ItemCategory = "frozen"
	CategoryOther      ItemCategory = "other"
)

// ParseCategory normalizes a free-text category from the vision collaborator.
// Unknown values fall back to "other" rather than failing.
func ParseCategory(s string) ItemCategory {
	switch ItemCategory(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryDairy, CategoryProduce, CategoryMeat, CategorySeafood,
		CategoryBeverages, CategoryCondiments, CategoryLeftovers, CategoryFrozen:
		return ItemCategory(strings.ToLower(strings.TrimSpace(s)))
	default:
		return CategoryOther
	}
}

// ObservedItem is one item as seen in one frame. It exists only inside a Frame;
// identity across frames is matched by lowercased name in the comparator.
type ObservedItem struct {
	Name       string       `json:"name"`
	Category   ItemCategory `json:"category"`
	Location   string       `json:"location"`
	Quantity   int          `json:"quantity"`
	Confidence float64      `json:"confidence"`
	ObservedAt time.Time    `json:"observed_at"`
}

// Key returns the identity key used for frame-to-frame matching.
// Exact match after lowercasing, no plural/singular normalization.
func (o ObservedItem) Key() string {
	return strings.ToLower(o.Name)
}

// Frame is one ordered snapshot of observed items. Immutable once appended to
// an observation buffer.
type Frame struct {
	ID         string         `json:"id"`
	CapturedAt time.Time      `json:"captured_at"`
	Items      []ObservedItem `json:"items"`
}

// SnapshotItem is the inbound contract from the vision collaborator: one
// detected item in a submitted snapshot. Optional fields default conservatively.
type SnapshotItem struct {
	Name               string  `json:"name"`
	Category           string  `json:"category,omitempty"`
	Quantity           int     `json:"quantity,omitempty"`
	Location           string  `json:"location,omitempty"`
	Confidence         float64 `json:"confidence"`
	ExpirationEstimate string  `json:"expiration_estimate,omitempty"` // RFC 3339
}

// InventoryItem is a tracked item in a household's current inventory, carrying
// the bookkeeping the decay model needs.
type InventoryItem struct {
	Name                string       `json:"name"`
	Category            ItemCategory `json:"category"`
	Location            string       `json:"location"`
	Quantity            int          `json:"quantity"`
	BaseConfidence      float64      `json:"base_confidence"`
	EffectiveConfidence float64      `json:"effective_confidence"`
	FirstSeen           time.Time    `json:"first_seen"`
	LastSeen            time.Time    `json:"last_seen"`
	ExpirationEstimate  time.Time    `json:"expiration_estimate,omitempty"`
	VerificationNeeded  bool         `json:"verification_needed"`
}

// Key returns the lowercased identity key, matching ObservedItem.Key.
func (i InventoryItem) Key() string {
	return strings.ToLower(i.Name)
}
