package alerts

import (
	"testing"
	"time"
)

func TestDedupeKeyDeterministicAndOrderIndependent(t *testing.T) {
	a := DedupeKey("rule-1", []string{"c2", "c1"}, "price|85", "2026-08-01")
	b := DedupeKey("rule-1", []string{"c1", "c2"}, "price|85", "2026-08-01")
	if a != b {
		t.Fatalf("expected condition-id order to not affect the dedupe key")
	}
}

func TestDedupeKeyDiffersForDifferentInputs(t *testing.T) {
	a := DedupeKey("rule-1", []string{"c1"}, "price|85", "2026-08-01")
	b := DedupeKey("rule-1", []string{"c1"}, "price|90", "2026-08-01")
	if a == b {
		t.Fatalf("expected different normalized values to produce different keys")
	}
}

func TestCandidateBucketsIncludesYesterdayNearMidnight(t *testing.T) {
	loc := time.UTC
	early := time.Date(2026, 8, 1, 1, 30, 0, 0, loc)
	buckets := CandidateBuckets(early, loc)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 candidate buckets near midnight, got %v", buckets)
	}
	if buckets[0] != "2026-08-01" || buckets[1] != "2026-07-31" {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
}

func TestCandidateBucketsExcludesYesterdayLaterInDay(t *testing.T) {
	loc := time.UTC
	afternoon := time.Date(2026, 8, 1, 14, 0, 0, 0, loc)
	buckets := CandidateBuckets(afternoon, loc)
	if len(buckets) != 1 || buckets[0] != "2026-08-01" {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
}
