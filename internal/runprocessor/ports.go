// Package runprocessor implements the end-to-end pipeline for one rule
// invocation: load state, fetch, extract, normalize, confirm, alert. It is
// the component every other package in this module feeds into, running each
// invocation as a single sequential stage chain rather than a streaming
// worker pool.
package runprocessor

import (
	"context"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/antiflap"
	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// RuleLoader resolves everything one run needs about a rule in a single
// read.
type RuleLoader interface {
	Load(ctx context.Context, ruleID string) (models.Rule, models.Source, models.FetchProfile, models.Workspace, error)
}

// RuleUpdater persists the mutations a run may apply to its rule outside
// the anti-flap CAS path: health score, last error, selector healing, and
// auto-throttle.
type RuleUpdater interface {
	UpdateHealth(ctx context.Context, ruleID string, healthScore int, lastErrorCode *models.ErrorCode, lastErrorAt *time.Time) error
	UpdateSelectorFingerprint(ctx context.Context, ruleID string, selector string, fp models.SelectorFingerprint) error
	UpdateSchemaFingerprint(ctx context.Context, ruleID string, fp models.SchemaFingerprint) error
	ApplyAutoThrottle(ctx context.Context, ruleID string, newIntervalSeconds int, nextRunAt time.Time, originalSchedule models.Schedule) error
}

// RunRepository persists the immutable Run record. Callers set
// run.ID before calling CreateRun.
type RunRepository interface {
	CreateRun(ctx context.Context, run models.Run) error
	FinishRun(ctx context.Context, run models.Run) error
}

// ObservationRepository persists the single Observation a successful run produces.
type ObservationRepository interface {
	Insert(ctx context.Context, obs models.Observation) error
}

// AlertRepository inserts a new alert and reports whether the unique
// dedupeKey collided with an existing row.
type AlertRepository interface {
	Insert(ctx context.Context, alert models.Alert) (inserted bool, err error)
	RefreshTriggeredAt(ctx context.Context, dedupeKey string, body string, triggeredAt time.Time) error
	ExistsAny(ctx context.Context, dedupeKeys []string) (bool, error)
}

// RuleStateStore is antiflap's persistence port, reused directly so the
// processor and antiflap.Apply share one contract.
type RuleStateStore = antiflap.Store

// AlertDispatchPayload is enqueued onto the alerts-dispatch queue.
type AlertDispatchPayload struct {
	AlertID     string
	WorkspaceID string
	RuleID      string
	Channels    []string
	DedupeKey   string
}

// Queue is the work-queue boundary the processor uses to re-enqueue itself
// on transient failure and to hand off alert dispatch.
type Queue interface {
	EnqueueRunRetry(ctx context.Context, job JobInput, delay time.Duration) error
	EnqueueAlertDispatch(ctx context.Context, payload AlertDispatchPayload) error
}

// ScreenshotCapturer renders the bounded element screenshot for
// screenshotOnChange rules. Optional: a nil
// Processor.screenshots skips this step entirely.
type ScreenshotCapturer interface {
	Capture(ctx context.Context, html string, selector string) (path string, err error)
}

const (
	screenshotPaddingPx = 189
	screenshotJPEGQuality = 80
)
