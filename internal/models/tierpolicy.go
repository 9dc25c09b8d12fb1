package models

import "time"

// TierPolicy is the resolved output of the tier-policy resolver.
type TierPolicy struct {
	PreferredProvider         *ProviderKind
	DisabledProviders         []ProviderKind
	StopAfterPreferredFailure bool
	GeoCountry                string
	SLOTarget                 float64
	AllowPaid                 bool
	TimeoutMs                 int
}

// TierDefaults is one row of the process-wide tier-default table.
type TierDefaults struct {
	Tier                      DomainTier     `yaml:"tier"`
	AllowPaid                 bool           `yaml:"allowPaid"`
	DisabledProviders         []ProviderKind `yaml:"disabledProviders"`
	PreferredProvider         *ProviderKind  `yaml:"preferredProvider"`
	TimeoutMs                 int            `yaml:"timeoutMs"`
	SLOTarget                 float64        `yaml:"sloTarget"`
	StopAfterPreferredFailure bool           `yaml:"stopAfterPreferredFailure"`
}

// RateLimitBucketConfig configures one (domain, provider) token bucket.
type RateLimitBucketConfig struct {
	CapacityTokens float64
	RefillPerSec   float64
	LeaseTTL       time.Duration
}

// BudgetCaps are the three daily caps enforced by the budget guard.
type BudgetCaps struct {
	WorkspacePerDayUSD float64
	DomainPerDayUSD    float64
	RulePerDayUSD      float64
}

// DefaultBudgetCaps returns the baseline per-scope daily spend caps.
func DefaultBudgetCaps() BudgetCaps {
	return BudgetCaps{
		WorkspacePerDayUSD: 10.00,
		DomainPerDayUSD:    2.00,
		RulePerDayUSD:      0.50,
	}
}
