package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// Load implements antiflap.Store.Load. A rule with no prior state row
// returns the zero RuleState, matching a never-yet-observed rule.
func (s *RuleStateStore) Load(ruleID string) (models.RuleState, error) {
	ctx := context.Background()
	row := s.pool.db.QueryRow(ctx, `
		select rule_id, last_stable, candidate, candidate_count, version
		from rule_states where rule_id = $1`, ruleID)

	var (
		state                      models.RuleState
		lastStableJSON, candidateJSON []byte
	)
	err := row.Scan(&state.RuleID, &lastStableJSON, &candidateJSON, &state.CandidateCount, &state.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RuleState{RuleID: ruleID}, nil
	}
	if err != nil {
		return models.RuleState{}, fmt.Errorf("storage: load rule state %s: %w", ruleID, err)
	}
	if len(lastStableJSON) > 0 {
		var v models.NormalizedValue
		if err := json.Unmarshal(lastStableJSON, &v); err != nil {
			return models.RuleState{}, fmt.Errorf("storage: decode last stable value: %w", err)
		}
		state.LastStable = &v
	}
	if len(candidateJSON) > 0 {
		var v models.NormalizedValue
		if err := json.Unmarshal(candidateJSON, &v); err != nil {
			return models.RuleState{}, fmt.Errorf("storage: decode candidate value: %w", err)
		}
		state.Candidate = &v
	}
	return state, nil
}

// CompareAndSwap implements antiflap.Store.CompareAndSwap: an upsert guarded
// by the row's current version, matching the optimistic-concurrency
// contract antiflap.Apply relies on to retry on contention.
func (s *RuleStateStore) CompareAndSwap(ruleID string, expectedVersion int64, next models.RuleState) (bool, error) {
	ctx := context.Background()
	lastStable, err := marshalOptional(next.LastStable)
	if err != nil {
		return false, err
	}
	candidate, err := marshalOptional(next.Candidate)
	if err != nil {
		return false, err
	}

	if expectedVersion == 0 {
		tag, err := s.pool.db.Exec(ctx, `
			insert into rule_states (rule_id, last_stable, candidate, candidate_count, version)
			values ($1, $2, $3, $4, 1)
			on conflict (rule_id) do nothing`, ruleID, lastStable, candidate, next.CandidateCount)
		if err != nil {
			return false, fmt.Errorf("storage: insert rule state %s: %w", ruleID, err)
		}
		return tag.RowsAffected() == 1, nil
	}

	tag, err := s.pool.db.Exec(ctx, `
		update rule_states set last_stable = $3, candidate = $4, candidate_count = $5, version = version + 1
		where rule_id = $1 and version = $2`, ruleID, expectedVersion, lastStable, candidate, next.CandidateCount)
	if err != nil {
		return false, fmt.Errorf("storage: update rule state %s: %w", ruleID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func marshalOptional(v *models.NormalizedValue) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("storage: encode normalized value: %w", err)
	}
	return raw, nil
}
