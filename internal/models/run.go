package models

import "time"

// FetchMode records which provider family actually served a run.
type FetchMode string

// Run is the immutable execution record for one rule invocation.
// Runs are never updated after FinishedAt is set.
type Run struct {
	ID             string     `json:"id" db:"id"`
	RuleID         string     `json:"ruleId" db:"rule_id"`
	StartedAt      time.Time  `json:"startedAt" db:"started_at"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty" db:"finished_at"`
	FetchModeUsed  FetchMode  `json:"fetchModeUsed" db:"fetch_mode_used"`
	HTTPStatus     *int       `json:"httpStatus,omitempty" db:"http_status"`
	ErrorCode      *ErrorCode `json:"errorCode,omitempty" db:"error_code"`
	ErrorDetail    string     `json:"errorDetail,omitempty" db:"error_detail"`
	BlockDetected  bool       `json:"blockDetected" db:"block_detected"`
	ContentHash    string     `json:"contentHash,omitempty" db:"content_hash"`
	ScreenshotPath string     `json:"screenshotPath,omitempty" db:"screenshot_path"`
	RawSample      []byte     `json:"rawSample,omitempty" db:"raw_sample"`
}

// ChangeKind classifies what kind of change an observation represents.
type ChangeKind string

const (
	ChangeNone        ChangeKind = ""
	ChangeAppeared    ChangeKind = "appeared"
	ChangeDisappeared ChangeKind = "disappeared"
	ChangeIncreased   ChangeKind = "increased"
	ChangeDecreased   ChangeKind = "decreased"
	ChangeOther       ChangeKind = "other"
)

// Observation is the extracted and normalized value produced by one successful run.
type Observation struct {
	ID                 string           `json:"id" db:"id"`
	RunID              string           `json:"runId" db:"run_id"`
	RuleID             string           `json:"ruleId" db:"rule_id"`
	ExtractedRaw       string           `json:"extractedRaw" db:"extracted_raw"`
	ExtractedNormalized NormalizedValue `json:"extractedNormalized" db:"extracted_normalized"`
	ChangeDetected     bool             `json:"changeDetected" db:"change_detected"`
	ChangeKind         ChangeKind       `json:"changeKind,omitempty" db:"change_kind"`
	DiffSummary        string           `json:"diffSummary,omitempty" db:"diff_summary"`
}

// FetchAttempt is one append-only ledger row for a single provider call.
type FetchAttempt struct {
	ID          string       `json:"id" db:"id"`
	WorkspaceID string       `json:"workspaceId" db:"workspace_id"`
	RuleID      *string      `json:"ruleId,omitempty" db:"rule_id"`
	Hostname    string       `json:"hostname" db:"hostname"`
	Provider    ProviderKind `json:"provider" db:"provider"`
	Outcome     FetchOutcome `json:"outcome" db:"outcome"`
	HTTPStatus  *int         `json:"httpStatus,omitempty" db:"http_status"`
	BodyBytes   int          `json:"bodyBytes" db:"body_bytes"`
	CostUSD     float64      `json:"costUsd" db:"cost_usd"`
	LatencyMs   int64        `json:"latencyMs" db:"latency_ms"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
}
