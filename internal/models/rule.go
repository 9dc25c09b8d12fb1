package models

import "time"

// Schedule is the rule's cadence.
type Schedule struct {
	IntervalSeconds int `json:"intervalSeconds" validate:"required,min=1"`
	JitterSeconds   int `json:"jitterSeconds"`
}

// Severity is the alert severity scale, ordered low < medium < high < critical.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "low"
	}
}

// ConditionKind enumerates all alert conditions.
type ConditionKind string

const (
	CondValueChanged        ConditionKind = "value_changed"
	CondValueIncreased      ConditionKind = "value_increased"
	CondValueDecreased      ConditionKind = "value_decreased"
	CondValueAbove          ConditionKind = "value_above"
	CondValueBelow          ConditionKind = "value_below"
	CondValueAppeared       ConditionKind = "value_appeared"
	CondValueDisappeared    ConditionKind = "value_disappeared"
	CondValueEquals         ConditionKind = "value_equals"
	CondValueNotEquals      ConditionKind = "value_not_equals"
	CondValueContains       ConditionKind = "value_contains"
	CondValueNotContains    ConditionKind = "value_not_contains"
	CondPercentageChange    ConditionKind = "percentage_change"
	CondPriceBelow          ConditionKind = "price_below"
	CondPriceAbove          ConditionKind = "price_above"
	CondPriceDropPercent    ConditionKind = "price_drop_percent"
	CondAvailabilityIs      ConditionKind = "availability_is"
	CondTextChanged         ConditionKind = "text_changed"
	CondNumberChanged       ConditionKind = "number_changed"
	CondNumberAbove         ConditionKind = "number_above"
	CondNumberBelow         ConditionKind = "number_below"

	// CondSchemaDrift marks the synthetic alert the extraction stage raises
	// when a rule's JSON-LD shape fingerprint changes; it is never evaluated
	// by the condition evaluator, only assigned as Alert.AlertType.
	CondSchemaDrift ConditionKind = "schema_drift"
)

// AlertCondition is one configured condition on a rule's alert policy.
type AlertCondition struct {
	ID        string        `json:"id" validate:"required"`
	Kind      ConditionKind `json:"kind" validate:"required"`
	Threshold float64       `json:"threshold,omitempty"`
	Value     string        `json:"value,omitempty"`
	Severity  Severity      `json:"severity"`
}

// AlertPolicy groups conditions with a cooldown.
type AlertPolicy struct {
	Conditions      []AlertCondition `json:"conditions"`
	CooldownSeconds int              `json:"cooldownSeconds" validate:"min=0"`
	Channels        []string         `json:"channels,omitempty"`
}

// Rule binds a source URL to extraction, normalization, schedule, and alert policy.
type Rule struct {
	ID                       string               `json:"id" db:"id"`
	SourceID                 string               `json:"sourceId" db:"source_id" validate:"required"`
	Name                     string               `json:"name" db:"name" validate:"required"`
	RuleType                 RuleType             `json:"ruleType" db:"rule_type" validate:"required"`
	Extraction               ExtractionConfig     `json:"extraction" db:"extraction"`
	Normalization            NormalizationConfig  `json:"normalization" db:"normalization"`
	Schedule                 Schedule             `json:"schedule" db:"schedule"`
	AlertPolicy              AlertPolicy          `json:"alertPolicy" db:"alert_policy"`
	Enabled                  bool                 `json:"enabled" db:"enabled"`
	ScreenshotOnChange       bool                 `json:"screenshotOnChange" db:"screenshot_on_change"`
	SelectorFingerprint      *SelectorFingerprint `json:"selectorFingerprint,omitempty" db:"selector_fingerprint"`
	SchemaFingerprint        *SchemaFingerprint   `json:"schemaFingerprint,omitempty" db:"schema_fingerprint"`
	HealthScore              int                  `json:"healthScore" db:"health_score"`
	LastErrorCode            *ErrorCode           `json:"lastErrorCode,omitempty" db:"last_error_code"`
	LastErrorAt              *time.Time           `json:"lastErrorAt,omitempty" db:"last_error_at"`
	NextRunAt                time.Time            `json:"nextRunAt" db:"next_run_at"`
	CaptchaIntervalEnforced  bool                 `json:"captchaIntervalEnforced" db:"captcha_interval_enforced"`
	OriginalSchedule         *Schedule            `json:"originalSchedule,omitempty" db:"original_schedule"`
	AutoThrottleDisabled     bool                 `json:"autoThrottleDisabled" db:"auto_throttle_disabled"`
}

// ClampHealthScore keeps HealthScore within [0,100].
func ClampHealthScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// RuleState is the anti-flap state for one rule, mutated only under
// optimistic concurrency.
type RuleState struct {
	RuleID         string           `json:"ruleId" db:"rule_id"`
	LastStable     *NormalizedValue `json:"lastStable,omitempty" db:"last_stable"`
	Candidate      *NormalizedValue `json:"candidate,omitempty" db:"candidate"`
	CandidateCount int              `json:"candidateCount" db:"candidate_count"`
	Version        int64            `json:"version" db:"version"`
}
