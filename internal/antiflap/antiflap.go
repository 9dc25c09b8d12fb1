// Package antiflap implements the confirmed-change state machine: a
// candidate value must be observed requireConsecutive times in a row before
// it replaces the rule's stable value.
package antiflap

import (
	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

// DefaultRequireConsecutive is the number of matching consecutive sightings
// needed to promote a candidate value to stable.
const DefaultRequireConsecutive = 2

// Transition applies one new observation to state and returns the next
// state plus whether this observation promoted a candidate to stable.
func Transition(state models.RuleState, value models.NormalizedValue, requireConsecutive int) (models.RuleState, bool) {
	if requireConsecutive <= 0 {
		requireConsecutive = DefaultRequireConsecutive
	}

	next := state

	switch {
	case state.LastStable == nil:
		next.LastStable = &value
		next.Candidate = nil
		next.CandidateCount = 0
		return next, false

	case state.LastStable.Equal(value):
		next.Candidate = nil
		next.CandidateCount = 0
		return next, false

	default: // value differs from lastStable: new or repeat candidate sighting
		count := 1
		if state.Candidate != nil && state.Candidate.Equal(value) {
			count = state.CandidateCount + 1
		}
		next.Candidate = &value
		next.CandidateCount = count
		if count >= requireConsecutive {
			next.LastStable = &value
			next.Candidate = nil
			next.CandidateCount = 0
			return next, true
		}
		return next, false
	}
}
