package tierpolicy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

func TestLoadDefaultsFromFileOverlaysBuiltins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tier_policy.yaml")
	content := `
tiers:
  tier_a:
    allowPaid: false
    timeoutMs: 15000
    sloTarget: 0.99
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	defaults, err := LoadDefaultsFromFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	policy := defaults.Resolve(models.TierA, Override{})
	if policy.TimeoutMs != 15000 {
		t.Fatalf("expected overridden timeout 15000, got %d", policy.TimeoutMs)
	}

	// Tier B was not present in the file, so the built-in default survives.
	policyB := defaults.Resolve(models.TierB, Override{})
	if !policyB.AllowPaid {
		t.Fatalf("expected tier_b to keep its built-in allowPaid=true")
	}
}

func TestWatchableDefaultsReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tier_policy.yaml")
	if err := os.WriteFile(path, []byte("tiers:\n  tier_a:\n    allowPaid: false\n    timeoutMs: 1000\n    sloTarget: 0.9\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	initial, err := LoadDefaultsFromFile(path)
	if err != nil {
		t.Fatalf("initial load failed: %v", err)
	}
	watchable := NewWatchableDefaults(initial)

	policy := watchable.Resolve(models.TierA, Override{})
	if policy.TimeoutMs != 1000 {
		t.Fatalf("expected initial timeout 1000, got %d", policy.TimeoutMs)
	}
}
