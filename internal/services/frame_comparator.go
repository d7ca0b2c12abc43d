package services

import (
	"fmt"
	"strings"
	"time"

	"domus/internal/models"
)

// Comparator constants
const (
	// PresenceThreshold is the minimum confidence for an item to count as
	// actually present in a frame
	PresenceThreshold = 0.5

	// consumptionMinAppearances is the minimum prior-frame appearance count
	// before a removal is treated as likely consumption
	consumptionMinAppearances = 2
)

// consumableCategories are food categories that are typically eaten rather
// than discarded; removals from these get a consumption confidence bonus.
var consumableCategories = map[models.ItemCategory]bool{
	models.CategoryDairy:     true,
	models.CategoryProduce:   true,
	models.CategoryMeat:      true,
	models.CategorySeafood:   true,
	models.CategoryBeverages: true,
	models.CategoryLeftovers: true,
}

// ChangeSet aggregates the changes detected between a new frame and the
// observation history. Produced fresh per comparison.
type ChangeSet struct {
	Added       []models.ItemAddedPayload
	Removed     []models.ItemRemovedPayload
	Moved       []models.ItemMovedPayload
	Consumption []models.ConsumptionLikelyPayload
	AnalyzedAt  time.Time
}

// Empty reports whether the comparison found no changes at all
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Moved) == 0 && len(c.Consumption) == 0
}

// FrameComparator detects item additions, removals, movements and likely
// consumption by diffing a new frame against the household's buffered history.
// Identity is matched by lowercased name only, no fuzzy or plural matching.
type FrameComparator struct {
	presenceThreshold float64
}

// NewFrameComparator creates a comparator with the given presence threshold
func NewFrameComparator(presenceThreshold float64) *FrameComparator {
	if presenceThreshold <= 0 {
		presenceThreshold = PresenceThreshold
	}
	return &FrameComparator{presenceThreshold: presenceThreshold}
}

// Compare diffs the current frame against the buffered history (oldest-first,
// as returned by ObservationBuffer.Snapshot). The first frame ever seen for a
// household short-circuits: every present item is an addition and no
// removal/movement/consumption logic runs.
func (fc *FrameComparator) Compare(current models.Frame, history []models.Frame) ChangeSet {
	changes := ChangeSet{AnalyzedAt: time.Now().UTC()}

	currentPresent := fc.presentByKey(current.Items)

	if len(history) == 0 {
		for _, item := range current.Items {
			if item.Confidence < fc.presenceThreshold {
				continue
			}
			changes.Added = append(changes.Added, models.ItemAddedPayload{
				ItemName:   item.Name,
				Location:   locationOrUnknown(item.Location),
				Category:   item.Category,
				Confidence: item.Confidence,
			})
		}
		return changes
	}

	previous := history[len(history)-1]
	previousPresent := fc.presentByKey(previous.Items)

	// Additions: present now, absent from the previous frame
	for _, item := range current.Items {
		if item.Confidence < fc.presenceThreshold {
			continue
		}
		if _, ok := previousPresent[item.Key()]; !ok {
			changes.Added = append(changes.Added, models.ItemAddedPayload{
				ItemName:   item.Name,
				Location:   locationOrUnknown(item.Location),
				Category:   item.Category,
				Confidence: item.Confidence,
			})
		}
	}

	// Removals: present before, absent now. Requiring at least one prior-frame
	// appearance filters single-frame occlusion artifacts.
	for _, item := range previous.Items {
		if item.Confidence < fc.presenceThreshold {
			continue
		}
		if _, ok := currentPresent[item.Key()]; ok {
			continue
		}
		framesPresent := countAppearances(item.Key(), history)
		if framesPresent < 1 {
			continue
		}
		removed := models.ItemRemovedPayload{
			ItemName:       item.Name,
			LastLocation:   locationOrUnknown(item.Location),
			LastConfidence: item.Confidence,
			FramesPresent:  framesPresent,
		}
		changes.Removed = append(changes.Removed, removed)

		if consumption, ok := fc.detectConsumption(removed, history); ok {
			changes.Consumption = append(changes.Consumption, consumption)
		}
	}

	// Movements: same name in both frames, different known locations
	for key, curr := range currentPresent {
		prev, ok := previousPresent[key]
		if !ok {
			continue
		}
		currLoc := strings.ToLower(locationOrUnknown(curr.Location))
		prevLoc := strings.ToLower(locationOrUnknown(prev.Location))
		if currLoc == prevLoc || currLoc == "unknown" || prevLoc == "unknown" {
			continue
		}
		changes.Moved = append(changes.Moved, models.ItemMovedPayload{
			ItemName:     curr.Name,
			FromLocation: prev.Location,
			ToLocation:   curr.Location,
		})
	}

	return changes
}

// detectConsumption decides whether a removal looks like consumption rather
// than discard. Items stably present across frames that suddenly disappear are
// likely consumed; consumable categories get a bonus.
func (fc *FrameComparator) detectConsumption(removed models.ItemRemovedPayload, history []models.Frame) (models.ConsumptionLikelyPayload, bool) {
	count := removed.FramesPresent
	if count < consumptionMinAppearances {
		return models.ConsumptionLikelyPayload{}, false
	}

	confidence := 0.5 + 0.1*float64(count)
	if confidence > 0.95 {
		confidence = 0.95
	}

	category := findCategoryInHistory(strings.ToLower(removed.ItemName), history)
	if consumableCategories[category] {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return models.ConsumptionLikelyPayload{
		ItemName:              removed.ItemName,
		Category:              category,
		ConsumptionConfidence: confidence,
		Reasoning:             fmt.Sprintf("Item observed in %d frames before removal", count),
	}, true
}

// presentByKey indexes a frame's items by identity key, filtered to those at
// or above the presence threshold. Later duplicates win, matching the
// most-recent-observation rule used throughout.
func (fc *FrameComparator) presentByKey(items []models.ObservedItem) map[string]models.ObservedItem {
	present := make(map[string]models.ObservedItem, len(items))
	for _, item := range items {
		if item.Confidence < fc.presenceThreshold {
			continue
		}
		present[item.Key()] = item
	}
	return present
}

// countAppearances counts frames in which an item appeared at least once
func countAppearances(key string, frames []models.Frame) int {
	count := 0
	for _, frame := range frames {
		for _, item := range frame.Items {
			if item.Key() == key {
				count++
				break
			}
		}
	}
	return count
}

// findCategoryInHistory scans the history for an item's category, newest first
func findCategoryInHistory(key string, frames []models.Frame) models.ItemCategory {
	for i := len(frames) - 1; i >= 0; i-- {
		for _, item := range frames[i].Items {
			if item.Key() == key {
				return item.Category
			}
		}
	}
	return models.CategoryOther
}

func locationOrUnknown(location string) string {
	if strings.TrimSpace(location) == "" {
		return "unknown"
	}
	return location
}
