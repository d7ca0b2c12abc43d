package config

import (
	"os"
	"path/filepath"
	"testing"

	"domus/internal/models"
)

// TestDecayRatesDefaults verifies the built-in table and fallback
func TestDecayRatesDefaults(t *testing.T) {
	rates := NewDecayRates()

	tests := []struct {
		category models.ItemCategory
		expected float64
	}{
		{models.CategoryMeat, 0.08},
		{models.CategorySeafood, 0.10},
		{models.CategoryLeftovers, 0.06},
		{models.CategoryDairy, 0.05},
		{models.CategoryProduce, 0.04},
		{models.CategoryBeverages, 0.02},
		{models.CategoryCondiments, 0.01},
		{models.CategoryFrozen, 0.01},
		{models.CategoryOther, 0.02},
	}
	for _, tt := range tests {
		if got := rates.Rate(tt.category); got != tt.expected {
			t.Errorf("Rate(%s) = %.3f, want %.3f", tt.category, got, tt.expected)
		}
	}

	if got := rates.Rate(models.ItemCategory("nonexistent")); got != defaultDecayRate {
		t.Errorf("Unknown category should fall back to %.3f, got %.3f", defaultDecayRate, got)
	}
}

// TestLoadFileOverrides verifies YAML overrides merge over the defaults and
// bad entries are skipped
func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decay_rates.yaml")
	content := "dairy: 0.07\nmeat: -1\nspaceship: 0.5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rates := NewDecayRates()
	if err := rates.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if got := rates.Rate(models.CategoryDairy); got != 0.07 {
		t.Errorf("Override not applied: dairy = %.3f, want 0.07", got)
	}
	// Non-positive rate rejected, default kept
	if got := rates.Rate(models.CategoryMeat); got != 0.08 {
		t.Errorf("Bad rate must be ignored: meat = %.3f, want 0.08", got)
	}
	// Unknown category must not pollute the "other" bucket
	if got := rates.Rate(models.CategoryOther); got != 0.02 {
		t.Errorf("Unknown category leaked into other: %.3f", got)
	}
}

// TestLoadFileMissing verifies a missing file is an error, not a panic
func TestLoadFileMissing(t *testing.T) {
	rates := NewDecayRates()
	if err := rates.LoadFile("/nonexistent/decay_rates.yaml"); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
