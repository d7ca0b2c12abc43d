package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"domus/internal/logging"
	"domus/internal/models"
)

// expiryWarningDays is the look-ahead window for "expiring soon" findings
const expiryWarningDays = 3

// expirationDaysByCategory supplies shelf-life estimates when the vision
// collaborator does not provide one
var expirationDaysByCategory = map[models.ItemCategory]int{
	models.CategoryDairy:      7,
	models.CategoryProduce:    5,
	models.CategoryMeat:       3,
	models.CategorySeafood:    2,
	models.CategoryBeverages:  30,
	models.CategoryCondiments: 90,
	models.CategoryLeftovers:  3,
	models.CategoryFrozen:     180,
	models.CategoryOther:      14,
}

// stapleItems are the household basics checked for the procurement reminder
var stapleItems = []string{"milk", "eggs", "bread", "butter", "cheese"}

// householdState holds everything tracked per household. The mutex
// serializes snapshot processing with sweeps so the buffer and inventory
// never disagree.
type householdState struct {
	mu        sync.Mutex
	buffer    *ObservationBuffer
	inventory map[string]*models.InventoryItem
}

// SnapshotResult reports what ProcessSnapshot did with a submission
type SnapshotResult struct {
	Accepted   bool          `json:"accepted"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	FrameID    string        `json:"frame_id,omitempty"`
	TotalItems int           `json:"total_items"`
	Changes    ChangeSet     `json:"changes"`
}

// InventoryService owns the per-household observation buffers and inventory
// state. Snapshots flow through debounce, frame comparison, inventory merge
// and event publication here; stale-confidence and expiry sweeps run over
// the same state from the scheduled monitor.
type InventoryService struct {
	mu         sync.RWMutex
	households map[string]*householdState

	comparator *FrameComparator
	decay      *ConfidenceDecayService
	debounce   *DebounceManager
	bus        *EventBus
	bufferCap  int
}

// NewInventoryService wires the snapshot pipeline
func NewInventoryService(comparator *FrameComparator, decay *ConfidenceDecayService, debounce *DebounceManager, bus *EventBus, bufferCapacity int) *InventoryService {
	if bufferCapacity <= 0 {
		bufferCapacity = DefaultBufferCapacity
	}
	return &InventoryService{
		households: make(map[string]*householdState),
		comparator: comparator,
		decay:      decay,
		debounce:   debounce,
		bus:        bus,
		bufferCap:  bufferCapacity,
	}
}

func (s *InventoryService) household(householdID string) *householdState {
	s.mu.RLock()
	state, ok := s.households[householdID]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok = s.households[householdID]; ok {
		return state
	}
	state = &householdState{
		buffer:    NewObservationBuffer(s.bufferCap),
		inventory: make(map[string]*models.InventoryItem),
	}
	s.households[householdID] = state
	return state
}

// ProcessSnapshot ingests one vision snapshot for a household. Rejections by
// the ingest debounce are a normal outcome reported in the result, not an
// error.
func (s *InventoryService) ProcessSnapshot(ctx context.Context, householdID string, items []models.SnapshotItem) (*SnapshotResult, error) {
	if householdID == "" {
		return nil, fmt.Errorf("snapshot missing household ID")
	}

	accept, err := s.debounce.AcceptSnapshot(ctx, householdID)
	if err != nil {
		// Fail open: a missed debounce beats dropping real observations
		log.Printf("⚠️ [INVENTORY] snapshot debounce check failed, accepting: %v", err)
		accept = true
	}
	if !accept {
		retryAfter, _, _ := s.debounce.SnapshotRetryAfter(ctx, householdID)
		if m := GetMetrics(); m != nil {
			m.RecordSnapshotRejected()
		}
		return &SnapshotResult{Accepted: false, RetryAfter: retryAfter}, nil
	}

	now := time.Now().UTC()
	frame := s.buildFrame(items, now)
	explicitExpirations := parseExpirationEstimates(items)

	state := s.household(householdID)
	state.mu.Lock()

	history := state.buffer.Snapshot()
	changes := s.comparator.Compare(frame, history)
	state.buffer.Append(frame)
	s.mergeInventory(state, frame, changes, explicitExpirations, now)

	total := len(state.inventory)
	names := make([]string, 0, total)
	var confidenceSum float64
	for _, item := range state.inventory {
		names = append(names, item.Name)
		confidenceSum = confidenceSum + item.EffectiveConfidence
	}
	sort.Strings(names)

	expired, expiring := s.findExpirationsLocked(state, now)
	missingStaples := s.missingStaplesLocked(state)
	state.mu.Unlock()

	s.publishChanges(householdID, changes)

	avgConfidence := 0.0
	if total > 0 {
		avgConfidence = confidenceSum / float64(total)
	}
	s.publish(householdID, models.InventoryUpdatedPayload{
		TotalItems:   total,
		ItemsAdded:   len(changes.Added),
		ItemsRemoved: len(changes.Removed),
		ItemsMoved:   len(changes.Moved),
		Items:        names,
		Confidence:   avgConfidence,
	})

	if len(expired) > 0 {
		s.publish(householdID, models.DetectedExpiryPayload{Count: len(expired), ExpiredItems: expired})
	}
	if len(expiring) > 0 {
		s.publish(householdID, models.ExpiryWarningPayload{Count: len(expiring), ExpiringItems: expiring})
	}
	if len(missingStaples) > 0 {
		s.publish(householdID, models.RequireProcurementPayload{MissingItems: missingStaples, Category: "staples"})
	}

	if m := GetMetrics(); m != nil {
		m.RecordFrameProcessed()
	}
	log.Printf("📸 [INVENTORY] household=%s frame=%s items=%d added=%d removed=%d moved=%d",
		householdID, frame.ID, total, len(changes.Added), len(changes.Removed), len(changes.Moved))
	logging.WithHousehold(householdID, frame.ID).Debug("snapshot processed",
		"total_items", total,
		"avg_confidence", avgConfidence,
		"expired", len(expired),
		"expiring", len(expiring),
		"missing_staples", len(missingStaples))

	return &SnapshotResult{
		Accepted:   true,
		FrameID:    frame.ID,
		TotalItems: total,
		Changes:    changes,
	}, nil
}

func (s *InventoryService) buildFrame(items []models.SnapshotItem, now time.Time) models.Frame {
	observed := make([]models.ObservedItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			continue
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		observed = append(observed, models.ObservedItem{
			Name:       item.Name,
			Category:   models.ParseCategory(item.Category),
			Location:   locationOrUnknown(item.Location),
			Quantity:   quantity,
			Confidence: item.Confidence,
			ObservedAt: now,
		})
	}
	return models.Frame{ID: uuid.NewString(), CapturedAt: now, Items: observed}
}

// mergeInventory folds an accepted frame into the household inventory.
// Sightings refresh LastSeen and base confidence; detected removals drop the
// item. Caller holds the state mutex.
func (s *InventoryService) mergeInventory(state *householdState, frame models.Frame, changes ChangeSet, explicitExpirations map[string]time.Time, now time.Time) {
	for _, observed := range frame.Items {
		if observed.Confidence < s.comparator.presenceThreshold {
			continue
		}
		key := observed.Key()
		existing, ok := state.inventory[key]
		if !ok {
			state.inventory[key] = &models.InventoryItem{
				Name:               observed.Name,
				Category:           observed.Category,
				Location:           observed.Location,
				Quantity:           observed.Quantity,
				BaseConfidence:     observed.Confidence,
				FirstSeen:          now,
				LastSeen:           now,
				ExpirationEstimate: expirationEstimate(explicitExpirations[key], observed.Category, now),
			}
			continue
		}
		existing.Category = observed.Category
		existing.Location = observed.Location
		existing.Quantity = observed.Quantity
		existing.BaseConfidence = observed.Confidence
		existing.LastSeen = now
		if explicit, ok := explicitExpirations[key]; ok {
			existing.ExpirationEstimate = explicit
		}
	}

	for _, removed := range changes.Removed {
		delete(state.inventory, strings.ToLower(removed.ItemName))
	}

	for _, item := range state.inventory {
		item.EffectiveConfidence = s.decay.EffectiveConfidence(*item, now)
		item.VerificationNeeded = s.decay.NeedsVerification(*item, now)
	}
}

// SetExpirationEstimates applies collaborator-provided expiry dates to
// tracked items. Unknown items are skipped.
func (s *InventoryService) SetExpirationEstimates(householdID string, estimates map[string]time.Time) int {
	state := s.household(householdID)
	state.mu.Lock()
	defer state.mu.Unlock()

	applied := 0
	for name, estimate := range estimates {
		if item, ok := state.inventory[strings.ToLower(name)]; ok {
			item.ExpirationEstimate = estimate
			applied++
		}
	}
	return applied
}

// parseExpirationEstimates collects valid RFC 3339 expiry dates supplied by
// the vision collaborator, keyed by item identity
func parseExpirationEstimates(items []models.SnapshotItem) map[string]time.Time {
	estimates := make(map[string]time.Time)
	for _, item := range items {
		if item.ExpirationEstimate == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, item.ExpirationEstimate)
		if err != nil {
			log.Printf("⚠️ [INVENTORY] ignoring bad expiration estimate for %s: %v", item.Name, err)
			continue
		}
		estimates[strings.ToLower(item.Name)] = parsed.UTC()
	}
	return estimates
}

// expirationEstimate prefers an explicit estimate and otherwise derives one
// from the category shelf life
func expirationEstimate(explicit time.Time, category models.ItemCategory, now time.Time) time.Time {
	if !explicit.IsZero() {
		return explicit
	}
	days, ok := expirationDaysByCategory[category]
	if !ok {
		days = expirationDaysByCategory[models.CategoryOther]
	}
	return now.AddDate(0, 0, days)
}

// GetInventory returns a household's current inventory with decay applied,
// sorted by name
func (s *InventoryService) GetInventory(householdID string, now time.Time) []models.InventoryItem {
	state := s.household(householdID)
	state.mu.Lock()
	defer state.mu.Unlock()

	result := make([]models.InventoryItem, 0, len(state.inventory))
	for _, item := range state.inventory {
		copied := *item
		copied.EffectiveConfidence = s.decay.EffectiveConfidence(copied, now)
		copied.VerificationNeeded = s.decay.NeedsVerification(copied, now)
		result = append(result, copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// GetStaleItems returns the decay-adjusted items whose effective confidence
// has fallen below the stale threshold
func (s *InventoryService) GetStaleItems(householdID string, now time.Time) []models.InventoryItem {
	return s.decay.StaleItems(s.GetInventory(householdID, now), now)
}

// Households returns the IDs with tracked state, for sweep iteration
func (s *InventoryService) Households() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.households))
	for id := range s.households {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DecaySweep recomputes effective confidence everywhere and publishes a
// confidence_degraded event per newly stale item. Returns how many stale
// items were found.
func (s *InventoryService) DecaySweep(now time.Time) int {
	staleTotal := 0
	for _, householdID := range s.Households() {
		state := s.household(householdID)
		state.mu.Lock()

		var degraded []models.ConfidenceDegradedPayload
		for _, item := range state.inventory {
			wasStale := item.EffectiveConfidence < s.decay.StaleThreshold()
			item.EffectiveConfidence = s.decay.EffectiveConfidence(*item, now)
			item.VerificationNeeded = s.decay.NeedsVerification(*item, now)

			if item.EffectiveConfidence < s.decay.StaleThreshold() && !wasStale {
				degraded = append(degraded, models.ConfidenceDegradedPayload{
					ItemName:            item.Name,
					Category:            item.Category,
					Location:            item.Location,
					EffectiveConfidence: item.EffectiveConfidence,
					HoursSinceSeen:      s.decay.HoursSinceSeen(*item, now),
					VerificationNeeded:  item.VerificationNeeded,
				})
			}
		}
		state.mu.Unlock()

		for _, payload := range degraded {
			s.publish(householdID, payload)
			staleTotal++
		}
	}
	return staleTotal
}

// ExpirySweep runs the expiry check for every tracked household and
// publishes findings. Returns expired and expiring-soon counts.
func (s *InventoryService) ExpirySweep(now time.Time) (int, int) {
	expiredTotal, expiringTotal := 0, 0
	for _, householdID := range s.Households() {
		state := s.household(householdID)
		state.mu.Lock()
		expired, expiring := s.findExpirationsLocked(state, now)
		state.mu.Unlock()

		if len(expired) > 0 {
			s.publish(householdID, models.DetectedExpiryPayload{Count: len(expired), ExpiredItems: expired})
			expiredTotal = expiredTotal + len(expired)
		}
		if len(expiring) > 0 {
			s.publish(householdID, models.ExpiryWarningPayload{Count: len(expiring), ExpiringItems: expiring})
			expiringTotal = expiringTotal + len(expiring)
		}
	}
	return expiredTotal, expiringTotal
}

// findExpirationsLocked splits tracked items into already-expired and
// expiring within the warning window. Caller holds the state mutex.
func (s *InventoryService) findExpirationsLocked(state *householdState, now time.Time) (expired, expiring []models.ExpiringItem) {
	for _, item := range state.inventory {
		if item.ExpirationEstimate.IsZero() {
			continue
		}
		if item.ExpirationEstimate.Before(now) {
			expired = append(expired, models.ExpiringItem{
				Name:        item.Name,
				Category:    item.Category,
				DaysExpired: daysBetween(item.ExpirationEstimate, now),
			})
			continue
		}
		daysLeft := daysBetween(now, item.ExpirationEstimate)
		if daysLeft <= expiryWarningDays {
			expiring = append(expiring, models.ExpiringItem{
				Name:            item.Name,
				Category:        item.Category,
				DaysUntilExpiry: daysLeft,
			})
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].Name < expired[j].Name })
	sort.Slice(expiring, func(i, j int) bool { return expiring[i].Name < expiring[j].Name })
	return expired, expiring
}

// missingStaplesLocked returns staples absent from the inventory. Caller
// holds the state mutex.
func (s *InventoryService) missingStaplesLocked(state *householdState) []string {
	var missing []string
	for _, staple := range stapleItems {
		if _, ok := state.inventory[staple]; !ok {
			missing = append(missing, staple)
		}
	}
	return missing
}

// HandleHardwareDisconnect records a lost camera connection and publishes
// the hardware event so the router can alert the household
func (s *InventoryService) HandleHardwareDisconnect(householdID, deviceType string, lastSeen time.Time) {
	if deviceType == "" {
		deviceType = "fridge_camera"
	}
	log.Printf("🔌 [INVENTORY] hardware disconnected household=%s device=%s", householdID, deviceType)
	s.publish(householdID, models.HardwareDisconnectedPayload{DeviceType: deviceType, LastSeen: lastSeen})
}

func (s *InventoryService) publishChanges(householdID string, changes ChangeSet) {
	m := GetMetrics()
	for _, added := range changes.Added {
		s.publish(householdID, added)
		if m != nil {
			m.RecordChange("added")
		}
	}
	for _, removed := range changes.Removed {
		s.publish(householdID, removed)
		if m != nil {
			m.RecordChange("removed")
		}
	}
	for _, moved := range changes.Moved {
		s.publish(householdID, moved)
		if m != nil {
			m.RecordChange("moved")
		}
	}
	for _, consumption := range changes.Consumption {
		s.publish(householdID, consumption)
		if m != nil {
			m.RecordChange("consumption")
		}
	}
}

func (s *InventoryService) publish(householdID string, payload models.EventPayload) {
	if s.bus == nil {
		return
	}
	event := models.NewEvent("inventory_service", householdID, payload)
	if err := s.bus.Publish(event); err != nil {
		log.Printf("⚠️ [INVENTORY] failed to publish %s: %v", event.Type, err)
	}
}

// daysBetween returns whole days from a to b, flooring partial days
func daysBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}
