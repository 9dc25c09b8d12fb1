package antiflap

import (
	"fmt"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

const maxCASRetries = 3

// Store is the minimal persistence contract antiflap.Apply needs: read the
// current state and attempt a versioned compare-and-swap write.
type Store interface {
	Load(ruleID string) (models.RuleState, error)
	CompareAndSwap(ruleID string, expectedVersion int64, next models.RuleState) (bool, error)
}

// Apply loads the current rule state, computes the transition for value,
// and writes it back under optimistic concurrency, retrying on version
// conflicts up to three times before giving up.
func Apply(store Store, ruleID string, value models.NormalizedValue, requireConsecutive int) (models.RuleState, bool, error) {
	for attempt := 0; attempt <= maxCASRetries; attempt++ {
		current, err := store.Load(ruleID)
		if err != nil {
			return models.RuleState{}, false, fmt.Errorf("antiflap: load state for %s: %w", ruleID, err)
		}

		next, confirmed := Transition(current, value, requireConsecutive)
		next.RuleID = ruleID
		next.Version = current.Version + 1

		ok, err := store.CompareAndSwap(ruleID, current.Version, next)
		if err != nil {
			return models.RuleState{}, false, fmt.Errorf("antiflap: cas write for %s: %w", ruleID, err)
		}
		if ok {
			return next, confirmed, nil
		}
	}

	return models.RuleState{}, false, fmt.Errorf("%w for rule %s", ErrCASExhausted, ruleID)
}
