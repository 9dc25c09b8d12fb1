// Package tierpolicy resolves a FetchProfile's domain tier and explicit
// overrides into a concrete TierPolicy using a layered defaults-then-overlay
// approach.
package tierpolicy

import (
	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// Resolver resolves a domain tier and its explicit overrides into a
// concrete TierPolicy. Both Defaults (a fixed in-memory table) and
// WatchableDefaults (a hot-reloadable one) implement it.
type Resolver interface {
	Resolve(tier models.DomainTier, override Override) models.TierPolicy
}

// Defaults is the process-wide tier-default table, loaded once at boot and
// treated as read-only afterward.
type Defaults struct {
	byTier map[models.DomainTier]models.TierDefaults
}

// NewDefaults builds the built-in tier-default table.
func NewDefaults() *Defaults {
	bright := models.ProviderBrightdata
	allFree := []models.ProviderKind{
		models.ProviderHTTP, models.ProviderMobileUA, models.ProviderHeadless, models.ProviderFlaresolverr,
	}
	return &Defaults{byTier: map[models.DomainTier]models.TierDefaults{
		models.TierA: {
			Tier: models.TierA, AllowPaid: false, TimeoutMs: 30_000, SLOTarget: 0.95,
		},
		models.TierB: {
			Tier: models.TierB, AllowPaid: true, DisabledProviders: allFree, PreferredProvider: &bright,
			TimeoutMs: 60_000, SLOTarget: 0.95, StopAfterPreferredFailure: true,
		},
		models.TierC: {
			Tier: models.TierC, AllowPaid: true, DisabledProviders: allFree, PreferredProvider: &bright,
			TimeoutMs: 120_000, SLOTarget: 0.80,
		},
		models.TierUnknown: {
			Tier: models.TierUnknown, AllowPaid: false, TimeoutMs: 30_000, SLOTarget: 0.95,
		},
	}}
}

// Override carries the explicit per-field JSONB overrides attached to a
// FetchProfile. Every field is a pointer/slice so "absent" is distinguishable
// from "explicitly zero".
type Override struct {
	PreferredProvider         *models.ProviderKind
	DisabledProviders         []models.ProviderKind
	StopAfterPreferredFailure *bool
	GeoCountry                *string
	SLOTarget                 *float64
	AllowPaid                 *bool
	TimeoutMs                 *int
}

// Resolve merges the tier defaults for profile.DomainTier with override,
// overlaying every field override present.
func (d *Defaults) Resolve(tier models.DomainTier, override Override) models.TierPolicy {
	def, ok := d.byTier[tier]
	if !ok {
		def = d.byTier[models.TierUnknown]
	}

	policy := models.TierPolicy{
		PreferredProvider:         def.PreferredProvider,
		DisabledProviders:         def.DisabledProviders,
		StopAfterPreferredFailure: def.StopAfterPreferredFailure,
		SLOTarget:                 def.SLOTarget,
		AllowPaid:                 def.AllowPaid,
		TimeoutMs:                 def.TimeoutMs,
	}

	if override.PreferredProvider != nil {
		policy.PreferredProvider = override.PreferredProvider
	}
	if override.DisabledProviders != nil {
		policy.DisabledProviders = override.DisabledProviders
	}
	if override.StopAfterPreferredFailure != nil {
		policy.StopAfterPreferredFailure = *override.StopAfterPreferredFailure
	}
	if override.GeoCountry != nil {
		policy.GeoCountry = *override.GeoCountry
	}
	if override.SLOTarget != nil {
		policy.SLOTarget = *override.SLOTarget
	}
	if override.AllowPaid != nil {
		policy.AllowPaid = *override.AllowPaid
	}
	if override.TimeoutMs != nil {
		policy.TimeoutMs = *override.TimeoutMs
	}

	return policy
}
