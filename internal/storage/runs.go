package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// CreateRun implements runprocessor.RunRepository.
func (r *RunRepository) CreateRun(ctx context.Context, run models.Run) error {
	_, err := r.pool.db.Exec(ctx, `
		insert into runs (id, rule_id, started_at, fetch_mode_used)
		values ($1, $2, $3, $4)`, run.ID, run.RuleID, run.StartedAt, run.FetchModeUsed)
	if err != nil {
		return fmt.Errorf("storage: create run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun writes the terminal fields of a run; runs are never updated
// again after this call.
func (r *RunRepository) FinishRun(ctx context.Context, run models.Run) error {
	_, err := r.pool.db.Exec(ctx, `
		update runs set
		       finished_at = $2, fetch_mode_used = $3, http_status = $4,
		       error_code = $5, error_detail = $6, block_detected = $7,
		       content_hash = $8, screenshot_path = $9, raw_sample = $10
		where id = $1`,
		run.ID, run.FinishedAt, run.FetchModeUsed, run.HTTPStatus,
		run.ErrorCode, run.ErrorDetail, run.BlockDetected,
		run.ContentHash, run.ScreenshotPath, run.RawSample)
	if err != nil {
		return fmt.Errorf("storage: finish run %s: %w", run.ID, err)
	}
	return nil
}

// InsertObservation writes one observation row; ObservationRepository.Insert
// delegates here to implement runprocessor.ObservationRepository.
func (r *RunRepository) InsertObservation(ctx context.Context, obs models.Observation) error {
	normalized, err := json.Marshal(obs.ExtractedNormalized)
	if err != nil {
		return fmt.Errorf("storage: encode normalized value: %w", err)
	}
	_, err = r.pool.db.Exec(ctx, `
		insert into observations (id, run_id, rule_id, extracted_raw, extracted_normalized, change_detected, change_kind, diff_summary)
		values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		obs.ID, obs.RunID, obs.RuleID, obs.ExtractedRaw, normalized, obs.ChangeDetected, obs.ChangeKind, obs.DiffSummary)
	if err != nil {
		return fmt.Errorf("storage: insert observation %s: %w", obs.ID, err)
	}
	return nil
}

// ObservationRepository adapts RunRepository.InsertObservation to the
// narrower runprocessor.ObservationRepository port without a second table
// wrapper, since observations and runs share the same write path and pool.
type ObservationRepository struct{ runs *RunRepository }

func NewObservationRepository(runs *RunRepository) *ObservationRepository {
	return &ObservationRepository{runs: runs}
}

func (o *ObservationRepository) Insert(ctx context.Context, obs models.Observation) error {
	return o.runs.InsertObservation(ctx, obs)
}
