package tierpolicy

import (
	"testing"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

func TestResolveAppliesTierDefaults(t *testing.T) {
	defs := NewDefaults()

	policy := defs.Resolve(models.TierB, Override{})

	if !policy.AllowPaid {
		t.Fatalf("expected tier_b to allow paid providers")
	}
	if !policy.StopAfterPreferredFailure {
		t.Fatalf("expected tier_b to stop after preferred failure")
	}
	if policy.PreferredProvider == nil || *policy.PreferredProvider != models.ProviderBrightdata {
		t.Fatalf("expected tier_b preferred provider to be brightdata, got %v", policy.PreferredProvider)
	}
	if policy.TimeoutMs != 60_000 {
		t.Fatalf("expected tier_b timeout 60000ms, got %d", policy.TimeoutMs)
	}
}

func TestResolveOverlaysExplicitOverrides(t *testing.T) {
	defs := NewDefaults()
	allowPaid := false
	timeout := 5_000

	policy := defs.Resolve(models.TierC, Override{AllowPaid: &allowPaid, TimeoutMs: &timeout})

	if policy.AllowPaid {
		t.Fatalf("expected override to disable paid providers")
	}
	if policy.TimeoutMs != 5_000 {
		t.Fatalf("expected override timeout 5000ms, got %d", policy.TimeoutMs)
	}
	// SLOTarget untouched by override should still come from the tier default.
	if policy.SLOTarget != 0.80 {
		t.Fatalf("expected tier_c slo target 0.80, got %v", policy.SLOTarget)
	}
}

func TestResolveUnknownTierFallsBackToUnknownDefaults(t *testing.T) {
	defs := NewDefaults()

	policy := defs.Resolve(models.DomainTier("bogus"), Override{})

	if policy.AllowPaid {
		t.Fatalf("expected unknown tier fallback to disallow paid providers")
	}
	if policy.TimeoutMs != 30_000 {
		t.Fatalf("expected unknown tier fallback timeout 30000ms, got %d", policy.TimeoutMs)
	}
}
