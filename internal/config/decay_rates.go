package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"domus/internal/models"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Default per-category decay rates in 1/hour. Higher rates mean faster
// confidence falloff for more perishable items.
var defaultDecayRates = map[models.ItemCategory]float64{
	models.CategoryMeat:       0.08, // ~9h half-life
	models.CategorySeafood:    0.10, // ~7h
	models.CategoryLeftovers:  0.06, // ~12h
	models.CategoryDairy:      0.05, // ~14h
	models.CategoryProduce:    0.04, // ~17h
	models.CategoryBeverages:  0.02, // ~35h
	models.CategoryOther:      0.02, // ~35h
	models.CategoryCondiments: 0.01, // ~69h
	models.CategoryFrozen:     0.01, // ~69h
}

const defaultDecayRate = 0.02

// DecayRates holds the per-category decay rate table, optionally overridden
// from a YAML file that can be hot-reloaded.
type DecayRates struct {
	mu    sync.RWMutex
	rates map[models.ItemCategory]float64
}

// NewDecayRates returns the default rate table
func NewDecayRates() *DecayRates {
	rates := make(map[models.ItemCategory]float64, len(defaultDecayRates))
	for cat, rate := range defaultDecayRates {
		rates[cat] = rate
	}
	return &DecayRates{rates: rates}
}

// Rate returns the decay rate for a category, falling back to the default
func (d *DecayRates) Rate(category models.ItemCategory) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if rate, ok := d.rates[category]; ok {
		return rate
	}
	return defaultDecayRate
}

// LoadFile merges per-category overrides from a YAML file. Unknown categories
// are ignored with a warning; non-positive rates are rejected.
func (d *DecayRates) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read decay rates file: %w", err)
	}

	var overrides map[string]float64
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse decay rates YAML: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for name, rate := range overrides {
		cat := models.ParseCategory(name)
		if string(cat) != name && cat == models.CategoryOther {
			log.Printf("⚠️  [DECAY-RATES] Ignoring unknown category %q in %s", name, path)
			continue
		}
		if rate <= 0 {
			log.Printf("⚠️  [DECAY-RATES] Ignoring non-positive rate %.4f for %s", rate, name)
			continue
		}
		d.rates[cat] = rate
	}
	return nil
}

// Watch reloads the rates file whenever it changes. Runs until the watcher
// errors out; callers start it in its own goroutine.
func (d *DecayRates) Watch(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  [DECAY-RATES] Failed to create file watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		log.Printf("⚠️  [DECAY-RATES] Failed to resolve %s: %v", path, err)
		watcher.Close()
		return
	}

	// Watch the directory; editors replace files rather than writing in place
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  [DECAY-RATES] Failed to watch %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for decay rate changes (hot-reload enabled)", path)

	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := d.LoadFile(path); err != nil {
						log.Printf("❌ [DECAY-RATES] Reload failed: %v", err)
					} else {
						log.Printf("✅ [DECAY-RATES] Reloaded rates from %s", path)
					}
				})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  [DECAY-RATES] Watcher error: %v", err)
		}
	}
}
