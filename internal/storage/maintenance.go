package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/fabianmarian8/sentinel-sub000/internal/maintenance"
)

// MaintenanceRepository backs the two cron cleanup sweeps.
type MaintenanceRepository struct{ pool *Pool }

func NewMaintenanceRepository(pool *Pool) *MaintenanceRepository {
	return &MaintenanceRepository{pool: pool}
}

var _ maintenance.Store = (*MaintenanceRepository)(nil)

func (m *MaintenanceRepository) DeleteRawSamplesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := m.pool.db.Exec(ctx, `
		update runs set raw_sample = null
		where raw_sample is not null and started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage: clear raw samples: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (m *MaintenanceRepository) DeleteFetchAttemptsOlderThanBatch(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	tag, err := m.pool.db.Exec(ctx, `
		delete from fetch_attempts where id in (
			select id from fetch_attempts where created_at < $1 limit $2
		)`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("storage: delete fetch attempts batch: %w", err)
	}
	return tag.RowsAffected(), nil
}
