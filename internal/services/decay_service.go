package services

import (
	"math"
	"time"

	"domus/internal/models"
)

// Decay model thresholds
const (
	// StaleThreshold marks an item whose presence can no longer be trusted
	StaleThreshold = 0.5

	// VerificationThreshold marks an item worth re-checking on the next frame
	VerificationThreshold = 0.6

	// MinimumConfidence floors decayed confidence; the model never claims an
	// item is certainly gone
	MinimumConfidence = 0.1
)

// DecayRateProvider resolves the per-category decay rate in 1/hour
type DecayRateProvider interface {
	Rate(category models.ItemCategory) float64
}

// ConfidenceDecayService computes effective confidence from time since last
// seen:
//
//	effective = max(floor, base * exp(-rate(category) * hours_since_seen))
//
// The model is pure and total: it never errors, only returning conservative
// values when timestamps are missing.
type ConfidenceDecayService struct {
	rates                 DecayRateProvider
	staleThreshold        float64
	verificationThreshold float64
	floor                 float64
}

// NewConfidenceDecayService creates a decay service with the default thresholds
func NewConfidenceDecayService(rates DecayRateProvider) *ConfidenceDecayService {
	return &ConfidenceDecayService{
		rates:                 rates,
		staleThreshold:        StaleThreshold,
		verificationThreshold: VerificationThreshold,
		floor:                 MinimumConfidence,
	}
}

// NewConfidenceDecayServiceWithThresholds creates a decay service with custom
// cutoffs. Out-of-range values fall back to the defaults.
func NewConfidenceDecayServiceWithThresholds(rates DecayRateProvider, stale, verification, floor float64) *ConfidenceDecayService {
	if stale <= 0 || stale >= 1 {
		stale = StaleThreshold
	}
	if verification <= 0 || verification >= 1 {
		verification = VerificationThreshold
	}
	if floor <= 0 || floor >= 1 {
		floor = MinimumConfidence
	}
	return &ConfidenceDecayService{
		rates:                 rates,
		staleThreshold:        stale,
		verificationThreshold: verification,
		floor:                 floor,
	}
}

// StaleThreshold returns the configured stale cutoff
func (s *ConfidenceDecayService) StaleThreshold() float64 {
	return s.staleThreshold
}

// EffectiveConfidence applies exponential decay to an item's base confidence.
// Missing LastSeen falls back to FirstSeen; with neither, the base confidence
// is returned unchanged.
func (s *ConfidenceDecayService) EffectiveConfidence(item models.InventoryItem, now time.Time) float64 {
	base := item.BaseConfidence
	if base <= 0 {
		base = 1.0
	}

	lastSeen := item.LastSeen
	if lastSeen.IsZero() {
		lastSeen = item.FirstSeen
	}
	if lastSeen.IsZero() {
		return base
	}

	hours := s.HoursSinceSeen(item, now)
	if hours <= 0 {
		return base
	}

	effective := base * s.DecayFactor(hours, item.Category)
	return math.Max(s.floor, effective)
}

// DecayFactor returns exp(-rate * hours) for a category, in (0, 1]
func (s *ConfidenceDecayService) DecayFactor(hoursUnseen float64, category models.ItemCategory) float64 {
	if hoursUnseen <= 0 {
		return 1.0
	}
	return math.Exp(-s.rates.Rate(category) * hoursUnseen)
}

// HoursSinceSeen returns the non-negative elapsed hours since the item was
// last observed, 0 when no timestamp is available
func (s *ConfidenceDecayService) HoursSinceSeen(item models.InventoryItem, now time.Time) float64 {
	lastSeen := item.LastSeen
	if lastSeen.IsZero() {
		lastSeen = item.FirstSeen
	}
	if lastSeen.IsZero() {
		return 0
	}
	return math.Max(0, now.Sub(lastSeen).Hours())
}

// IsStale reports whether the item's effective confidence has fallen below the
// stale threshold
func (s *ConfidenceDecayService) IsStale(item models.InventoryItem, now time.Time) bool {
	return s.EffectiveConfidence(item, now) < s.staleThreshold
}

// NeedsVerification reports whether the item should be re-checked: either it
// is already flagged, or its effective confidence fell below the verification
// threshold
func (s *ConfidenceDecayService) NeedsVerification(item models.InventoryItem, now time.Time) bool {
	if item.VerificationNeeded {
		return true
	}
	return s.EffectiveConfidence(item, now) < s.verificationThreshold
}

// StaleItems returns the inventory entries below the stale threshold, with
// effective confidence filled in
func (s *ConfidenceDecayService) StaleItems(inventory []models.InventoryItem, now time.Time) []models.InventoryItem {
	var stale []models.InventoryItem
	for _, item := range inventory {
		effective := s.EffectiveConfidence(item, now)
		if effective < s.staleThreshold {
			item.EffectiveConfidence = effective
			stale = append(stale, item)
		}
	}
	return stale
}

// ApplyDecay returns a copy of the inventory with effective confidence and the
// verification flag refreshed on every item
func (s *ConfidenceDecayService) ApplyDecay(inventory []models.InventoryItem, now time.Time) []models.InventoryItem {
	out := make([]models.InventoryItem, len(inventory))
	for i, item := range inventory {
		item.EffectiveConfidence = s.EffectiveConfidence(item, now)
		item.VerificationNeeded = s.NeedsVerification(item, now)
		out[i] = item
	}
	return out
}

// EstimateHoursToThreshold inverts the decay formula:
//
//	t = -ln(threshold/base) / rate
//
// It returns false when the base confidence is already at or below the
// threshold, or when the ratio is outside (0, 1) and the threshold can never
// be crossed.
func (s *ConfidenceDecayService) EstimateHoursToThreshold(item models.InventoryItem, threshold float64) (float64, bool) {
	base := item.BaseConfidence
	if base <= 0 {
		base = 1.0
	}
	if base <= threshold {
		return 0, false
	}

	rate := s.rates.Rate(item.Category)
	if rate <= 0 {
		return 0, false
	}

	ratio := threshold / base
	if ratio <= 0 || ratio >= 1 {
		return 0, false
	}

	return -math.Log(ratio) / rate, true
}
