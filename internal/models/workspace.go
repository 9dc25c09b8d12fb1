package models

import "time"

// Workspace is the tenant boundary. It owns sources, rules, and channels
// and carries the daily cost budget enforced by the orchestrator's budget
// guard.
type Workspace struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name" validate:"required"`
	Timezone         string    `json:"timezone" db:"timezone" validate:"required"`
	DailyBudgetUSD   float64   `json:"dailyBudgetUsd" db:"daily_budget_usd"`
	CanaryEnabled    bool      `json:"canaryEnabled" db:"canary_enabled"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}

// DefaultWorkspaceDailyBudgetUSD is the fallback workspace/day cap.
const DefaultWorkspaceDailyBudgetUSD = 10.00

// Location resolves the workspace's IANA timezone, falling back to UTC.
func (w Workspace) Location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Source is a monitored URL within a workspace, uniquely identified by
// (url OR canonicalUrl) within its workspace.
type Source struct {
	ID             string    `json:"id" db:"id"`
	WorkspaceID    string    `json:"workspaceId" db:"workspace_id" validate:"required"`
	URL            string    `json:"url" db:"url" validate:"required,url"`
	CanonicalURL   string    `json:"canonicalUrl" db:"canonical_url"`
	Domain         string    `json:"domain" db:"domain"`
	FetchProfileID *string   `json:"fetchProfileId,omitempty" db:"fetch_profile_id"`
	Tags           []string  `json:"tags" db:"tags"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// DomainTier classifies a domain's anti-bot posture and drives the
// tier-policy resolver.
type DomainTier string

const (
	TierA       DomainTier = "tier_a"
	TierB       DomainTier = "tier_b"
	TierC       DomainTier = "tier_c"
	TierUnknown DomainTier = "unknown"
)

// FetchProfile is the policy bag attached to a source, resolved by the
// tier-policy resolver into a concrete TierPolicy.
type FetchProfile struct {
	ID                       string                 `json:"id" db:"id"`
	WorkspaceID              string                 `json:"workspaceId" db:"workspace_id"`
	Mode                     string                 `json:"mode" db:"mode"`
	UserAgent                string                 `json:"userAgent" db:"user_agent"`
	Cookies                  map[string]string      `json:"cookies,omitempty" db:"cookies"`
	Headers                  map[string]string      `json:"headers,omitempty" db:"headers"`
	RenderWaitMs             int                    `json:"renderWaitMs" db:"render_wait_ms"`
	PreferredProvider        *ProviderKind          `json:"preferredProvider,omitempty" db:"preferred_provider"`
	DisabledProviders        []ProviderKind         `json:"disabledProviders,omitempty" db:"disabled_providers"`
	StopAfterPreferredFailure bool                  `json:"stopAfterPreferredFailure" db:"stop_after_preferred_failure"`
	FlaresolverrWaitSeconds  int                    `json:"flaresolverrWaitSeconds" db:"flaresolverr_wait_seconds"`
	GeoCountry               *string                `json:"geoCountry,omitempty" db:"geo_country"`
	DomainTier               DomainTier             `json:"domainTier" db:"domain_tier"`
	ScreenshotOnChange       bool                   `json:"screenshotOnChange" db:"screenshot_on_change"`
	TierPolicyOverrides      map[string]interface{} `json:"tierPolicyOverrides,omitempty" db:"tier_policy_overrides"`
}
