package antiflap

import (
	"fmt"
	"testing"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

func priceValue(v float64) models.NormalizedValue {
	return models.NormalizedValue{RuleType: models.RuleTypePrice, PriceValue: v, Currency: "EUR"}
}

func TestTransitionFirstSightingIsNotAChange(t *testing.T) {
	state := models.RuleState{}
	next, confirmed := Transition(state, priceValue(29.99), 2)
	if confirmed {
		t.Fatalf("first sighting must never confirm a change")
	}
	if next.LastStable == nil || next.LastStable.PriceValue != 29.99 {
		t.Fatalf("expected lastStable to be set, got %+v", next.LastStable)
	}
}

func TestTransitionRequiresConsecutiveConfirmation(t *testing.T) {
	state := models.RuleState{LastStable: ptrValue(priceValue(100))}

	next, confirmed := Transition(state, priceValue(85), 2)
	if confirmed {
		t.Fatalf("single new observation must not confirm with requireConsecutive=2")
	}
	if next.Candidate == nil || next.CandidateCount != 1 {
		t.Fatalf("expected candidate to be tracked, got %+v", next)
	}

	next2, confirmed2 := Transition(next, priceValue(85), 2)
	if !confirmed2 {
		t.Fatalf("expected second consecutive observation to confirm")
	}
	if next2.LastStable == nil || next2.LastStable.PriceValue != 85 {
		t.Fatalf("expected lastStable promoted to 85, got %+v", next2.LastStable)
	}
}

func TestTransitionRevertingToStableClearsCandidate(t *testing.T) {
	state := models.RuleState{
		LastStable:     ptrValue(priceValue(100)),
		Candidate:      ptrValue(priceValue(85)),
		CandidateCount: 1,
	}

	next, confirmed := Transition(state, priceValue(100), 2)
	if confirmed {
		t.Fatalf("returning to the stable value is not a change")
	}
	if next.Candidate != nil || next.CandidateCount != 0 {
		t.Fatalf("expected candidate cleared, got %+v", next)
	}
}

func TestTransitionConfirmsImmediatelyWhenRequireConsecutiveIsOne(t *testing.T) {
	state := models.RuleState{LastStable: ptrValue(priceValue(100))}

	next, confirmed := Transition(state, priceValue(85), 1)
	if !confirmed {
		t.Fatalf("expected a single new observation to confirm when requireConsecutive=1")
	}
	if next.LastStable == nil || next.LastStable.PriceValue != 85 {
		t.Fatalf("expected lastStable promoted to 85, got %+v", next.LastStable)
	}
}

func ptrValue(v models.NormalizedValue) *models.NormalizedValue { return &v }

type fakeStore struct {
	state       models.RuleState
	conflictFor int
	calls       int
}

func (s *fakeStore) Load(ruleID string) (models.RuleState, error) {
	return s.state, nil
}

func (s *fakeStore) CompareAndSwap(ruleID string, expectedVersion int64, next models.RuleState) (bool, error) {
	s.calls++
	if s.calls <= s.conflictFor {
		return false, nil
	}
	if expectedVersion != s.state.Version {
		return false, nil
	}
	s.state = next
	return true, nil
}

func TestApplyRetriesOnVersionConflict(t *testing.T) {
	store := &fakeStore{conflictFor: 1}
	_, confirmed, err := Apply(store, "rule-1", priceValue(29.99), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed {
		t.Fatalf("first confirmed sighting should not report a confirmed change")
	}
	if store.calls != 2 {
		t.Fatalf("expected exactly one retry (2 calls), got %d", store.calls)
	}
}

func TestApplyGivesUpAfterThreeRetries(t *testing.T) {
	store := &fakeStore{conflictFor: 10}
	_, _, err := Apply(store, "rule-1", priceValue(29.99), 2)
	if err == nil {
		t.Fatalf("expected an error after exhausting retries")
	}
	if fmt.Sprintf("%v", err) == "" {
		t.Fatalf("expected a descriptive error")
	}
}
