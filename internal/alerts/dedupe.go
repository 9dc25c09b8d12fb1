package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DedupeKey computes the deterministic per-day alert key:
// sha256(ruleId + ":" + sorted(conditionIds) + ":" + sha256(normalizedValue)[0:16] + ":" + dayBucket).
func DedupeKey(ruleID string, conditionIDs []string, normalizedValueRepr string, dayBucket string) string {
	sorted := append([]string{}, conditionIDs...)
	sort.Strings(sorted)

	valueHash := sha256.Sum256([]byte(normalizedValueRepr))
	valuePrefix := hex.EncodeToString(valueHash[:])[:16]

	payload := ruleID + ":" + strings.Join(sorted, ",") + ":" + valuePrefix + ":" + dayBucket
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// DayBucket returns the local date (YYYY-MM-DD) for t in loc
func DayBucket(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// overlapWindow is how long after local midnight the previous day's bucket
// is still considered for duplicate suppression.
const overlapWindow = 4 * time.Hour

// CandidateBuckets returns the day buckets that must be checked for an
// existing alert: just today's, unless we're within the first 4 hours after
// local midnight, in which case yesterday's bucket is also checked.
func CandidateBuckets(now time.Time, loc *time.Location) []string {
	local := now.In(loc)
	today := local.Format("2006-01-02")
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if local.Sub(midnight) < overlapWindow {
		yesterday := midnight.Add(-time.Hour).Format("2006-01-02")
		return []string{today, yesterday}
	}
	return []string{today}
}

// NormalizedValueRepr builds the stable string representation hashed into
// the dedupe key's value component. Callers pass a value's canonical
// string form (e.g. from normalize.DiffSummary's current-side rendering)
// so equal normalized values always hash identically.
func NormalizedValueRepr(ruleType, repr string) string {
	return fmt.Sprintf("%s|%s", ruleType, repr)
}
