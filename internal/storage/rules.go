package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// Load implements runprocessor.RuleLoader: fetch the rule, its source, the
// source's fetch profile (if any), and the owning workspace in one
// round trip.
func (r *RuleRepository) Load(ctx context.Context, ruleID string) (models.Rule, models.Source, models.FetchProfile, models.Workspace, error) {
	row := r.pool.db.QueryRow(ctx, `
		select r.id, r.source_id, r.name, r.rule_type, r.extraction, r.normalization,
		       r.schedule, r.alert_policy, r.enabled, r.screenshot_on_change,
		       r.selector_fingerprint, r.schema_fingerprint, r.health_score,
		       r.last_error_code, r.last_error_at, r.next_run_at,
		       r.captcha_interval_enforced, r.original_schedule, r.auto_throttle_disabled,
		       s.id, s.workspace_id, s.url, s.canonical_url, s.domain, s.fetch_profile_id, s.tags, s.created_at,
		       w.id, w.name, w.timezone, w.daily_budget_usd, w.canary_enabled, w.created_at
		from rules r
		join sources s on s.id = r.source_id
		join workspaces w on w.id = s.workspace_id
		where r.id = $1`, ruleID)

	var (
		rule                                       models.Rule
		source                                     models.Source
		workspace                                  models.Workspace
		extractionJSON, normalizationJSON           []byte
		scheduleJSON, alertPolicyJSON               []byte
		selectorFPJSON, schemaFPJSON                []byte
		originalScheduleJSON                        []byte
	)
	err := row.Scan(
		&rule.ID, &rule.SourceID, &rule.Name, &rule.RuleType, &extractionJSON, &normalizationJSON,
		&scheduleJSON, &alertPolicyJSON, &rule.Enabled, &rule.ScreenshotOnChange,
		&selectorFPJSON, &schemaFPJSON, &rule.HealthScore,
		&rule.LastErrorCode, &rule.LastErrorAt, &rule.NextRunAt,
		&rule.CaptchaIntervalEnforced, &originalScheduleJSON, &rule.AutoThrottleDisabled,
		&source.ID, &source.WorkspaceID, &source.URL, &source.CanonicalURL, &source.Domain, &source.FetchProfileID, &source.Tags, &source.CreatedAt,
		&workspace.ID, &workspace.Name, &workspace.Timezone, &workspace.DailyBudgetUSD, &workspace.CanaryEnabled, &workspace.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Rule{}, models.Source{}, models.FetchProfile{}, models.Workspace{}, models.ErrRuleNotFound
	}
	if err != nil {
		return models.Rule{}, models.Source{}, models.FetchProfile{}, models.Workspace{}, fmt.Errorf("storage: load rule %s: %w", ruleID, err)
	}

	if err := unmarshalJSONB(extractionJSON, &rule.Extraction); err != nil {
		return models.Rule{}, models.Source{}, models.FetchProfile{}, models.Workspace{}, err
	}
	if err := unmarshalJSONB(normalizationJSON, &rule.Normalization); err != nil {
		return models.Rule{}, models.Source{}, models.FetchProfile{}, models.Workspace{}, err
	}
	if err := unmarshalJSONB(scheduleJSON, &rule.Schedule); err != nil {
		return models.Rule{}, models.Source{}, models.FetchProfile{}, models.Workspace{}, err
	}
	if err := unmarshalJSONB(alertPolicyJSON, &rule.AlertPolicy); err != nil {
		return models.Rule{}, models.Source{}, models.FetchProfile{}, models.Workspace{}, err
	}
	if len(selectorFPJSON) > 0 {
		var fp models.SelectorFingerprint
		if err := json.Unmarshal(selectorFPJSON, &fp); err != nil {
			return models.Rule{}, models.Source{}, models.FetchProfile{}, models.Workspace{}, fmt.Errorf("storage: decode selector fingerprint: %w", err)
		}
		rule.SelectorFingerprint = &fp
	}
	if len(schemaFPJSON) > 0 {
		var fp models.SchemaFingerprint
		if err := json.Unmarshal(schemaFPJSON, &fp); err != nil {
			return models.Rule{}, models.Source{}, models.FetchProfile{}, models.Workspace{}, fmt.Errorf("storage: decode schema fingerprint: %w", err)
		}
		rule.SchemaFingerprint = &fp
	}
	if len(originalScheduleJSON) > 0 {
		var sched models.Schedule
		if err := json.Unmarshal(originalScheduleJSON, &sched); err != nil {
			return models.Rule{}, models.Source{}, models.FetchProfile{}, models.Workspace{}, fmt.Errorf("storage: decode original schedule: %w", err)
		}
		rule.OriginalSchedule = &sched
	}

	profile, err := r.loadFetchProfile(ctx, source.FetchProfileID)
	if err != nil {
		return models.Rule{}, models.Source{}, models.FetchProfile{}, models.Workspace{}, err
	}

	return rule, source, profile, workspace, nil
}

func (r *RuleRepository) loadFetchProfile(ctx context.Context, id *string) (models.FetchProfile, error) {
	if id == nil {
		return models.FetchProfile{}, nil
	}
	row := r.pool.db.QueryRow(ctx, `
		select id, workspace_id, mode, user_agent, cookies, headers, render_wait_ms,
		       preferred_provider, disabled_providers, stop_after_preferred_failure,
		       flaresolverr_wait_seconds, geo_country, domain_tier, screenshot_on_change,
		       tier_policy_overrides
		from fetch_profiles where id = $1`, *id)

	var (
		profile                      models.FetchProfile
		cookiesJSON, headersJSON     []byte
		overridesJSON                []byte
	)
	err := row.Scan(
		&profile.ID, &profile.WorkspaceID, &profile.Mode, &profile.UserAgent, &cookiesJSON, &headersJSON, &profile.RenderWaitMs,
		&profile.PreferredProvider, &profile.DisabledProviders, &profile.StopAfterPreferredFailure,
		&profile.FlaresolverrWaitSeconds, &profile.GeoCountry, &profile.DomainTier, &profile.ScreenshotOnChange,
		&overridesJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.FetchProfile{}, nil
	}
	if err != nil {
		return models.FetchProfile{}, fmt.Errorf("storage: load fetch profile %s: %w", *id, err)
	}
	if len(cookiesJSON) > 0 {
		if err := json.Unmarshal(cookiesJSON, &profile.Cookies); err != nil {
			return models.FetchProfile{}, fmt.Errorf("storage: decode profile cookies: %w", err)
		}
	}
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &profile.Headers); err != nil {
			return models.FetchProfile{}, fmt.Errorf("storage: decode profile headers: %w", err)
		}
	}
	if len(overridesJSON) > 0 {
		if err := json.Unmarshal(overridesJSON, &profile.TierPolicyOverrides); err != nil {
			return models.FetchProfile{}, fmt.Errorf("storage: decode tier policy overrides: %w", err)
		}
	}
	return profile, nil
}

// UpdateHealth implements runprocessor.RuleUpdater.
func (r *RuleRepository) UpdateHealth(ctx context.Context, ruleID string, healthScore int, lastErrorCode *models.ErrorCode, lastErrorAt *time.Time) error {
	_, err := r.pool.db.Exec(ctx, `
		update rules set health_score = $2, last_error_code = $3, last_error_at = $4
		where id = $1`, ruleID, healthScore, lastErrorCode, lastErrorAt)
	if err != nil {
		return fmt.Errorf("storage: update health for rule %s: %w", ruleID, err)
	}
	return nil
}

// UpdateSelectorFingerprint records a healed selector and its fingerprint.
func (r *RuleRepository) UpdateSelectorFingerprint(ctx context.Context, ruleID string, selector string, fp models.SelectorFingerprint) error {
	raw, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("storage: encode selector fingerprint: %w", err)
	}
	_, err = r.pool.db.Exec(ctx, `
		update rules set selector_fingerprint = $2,
		       extraction = jsonb_set(extraction, '{selector}', to_jsonb($3::text))
		where id = $1`, ruleID, raw, selector)
	if err != nil {
		return fmt.Errorf("storage: update selector fingerprint for rule %s: %w", ruleID, err)
	}
	return nil
}

// UpdateSchemaFingerprint records the rule's current JSON-LD shape hash.
func (r *RuleRepository) UpdateSchemaFingerprint(ctx context.Context, ruleID string, fp models.SchemaFingerprint) error {
	raw, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("storage: encode schema fingerprint: %w", err)
	}
	_, err = r.pool.db.Exec(ctx, `update rules set schema_fingerprint = $2 where id = $1`, ruleID, raw)
	if err != nil {
		return fmt.Errorf("storage: update schema fingerprint for rule %s: %w", ruleID, err)
	}
	return nil
}

// ApplyAutoThrottle persists the captcha-interval enforcement mutation the
// run processor decided on: back up the original schedule once, widen the
// interval, and push nextRunAt out.
func (r *RuleRepository) ApplyAutoThrottle(ctx context.Context, ruleID string, newIntervalSeconds int, nextRunAt time.Time, originalSchedule models.Schedule) error {
	raw, err := json.Marshal(originalSchedule)
	if err != nil {
		return fmt.Errorf("storage: encode original schedule: %w", err)
	}
	_, err = r.pool.db.Exec(ctx, `
		update rules set
		       captcha_interval_enforced = true,
		       original_schedule = coalesce(original_schedule, $3),
		       schedule = jsonb_set(schedule, '{intervalSeconds}', to_jsonb($2::int)),
		       next_run_at = $4
		where id = $1`, ruleID, newIntervalSeconds, raw, nextRunAt)
	if err != nil {
		return fmt.Errorf("storage: apply auto-throttle for rule %s: %w", ruleID, err)
	}
	return nil
}

func unmarshalJSONB(raw []byte, target interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("storage: decode jsonb: %w", err)
	}
	return nil
}
