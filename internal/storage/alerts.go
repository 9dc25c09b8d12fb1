package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

const uniqueViolation = "23505"

// Insert implements runprocessor.AlertRepository.Insert: a unique-key
// collision on dedupe_key is not an error, it means a duplicate alert was
// correctly suppressed.
func (a *AlertRepository) Insert(ctx context.Context, alert models.Alert) (bool, error) {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return false, fmt.Errorf("storage: encode alert metadata: %w", err)
	}
	_, err = a.pool.db.Exec(ctx, `
		insert into alerts (id, rule_id, triggered_at, severity, alert_type, title, body, metadata, dedupe_key, channels_sent)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		alert.ID, alert.RuleID, alert.TriggeredAt, alert.Severity, alert.AlertType,
		alert.Title, alert.Body, metadata, alert.DedupeKey, alert.ChannelsSent)
	if err != nil {
		var pgErr *pgconn.PgError
		if isUniqueViolation(err, &pgErr) {
			return false, nil
		}
		return false, fmt.Errorf("storage: insert alert %s: %w", alert.ID, err)
	}
	return true, nil
}

// RefreshTriggeredAt bumps triggeredAt and body on a same-day repeat of an
// already-suppressed alert, so the dashboard reflects the latest detail
// without spawning a second notification.
func (a *AlertRepository) RefreshTriggeredAt(ctx context.Context, dedupeKey string, body string, triggeredAt time.Time) error {
	_, err := a.pool.db.Exec(ctx, `
		update alerts set triggered_at = $2, body = $3 where dedupe_key = $1`, dedupeKey, triggeredAt, body)
	if err != nil {
		return fmt.Errorf("storage: refresh alert %s: %w", dedupeKey, err)
	}
	return nil
}

// ExistsAny reports whether any alert already exists for one of the given
// dedupeKeys, letting callers check the current-day and midnight-overlap
// buckets before ever touching the cooldown gate.
func (a *AlertRepository) ExistsAny(ctx context.Context, dedupeKeys []string) (bool, error) {
	if len(dedupeKeys) == 0 {
		return false, nil
	}
	var exists bool
	err := a.pool.db.QueryRow(ctx, `
		select exists(select 1 from alerts where dedupe_key = any($1))`, dedupeKeys).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: check existing alerts: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error, target **pgconn.PgError) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	*target = pgErr
	return pgErr.Code == uniqueViolation
}
