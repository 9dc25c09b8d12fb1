package orchestrator

import "github.com/fabianmarian8/sentinel-sub000/internal/models"

// ThrottleSignal tells the run processor that this run's outcome should
// push the rule's schedule out: whenever a paid provider
// served the successful fetch, the owning rule's effective interval is
// raised to at least one day so a single expensive success doesn't get
// hammered every few minutes.
type ThrottleSignal struct {
	ShouldThrottle  bool
	MinIntervalSecs int
}

const autoThrottleMinIntervalSecs = 24 * 60 * 60

// Throttle inspects a finished fetch and decides whether the caller
// should widen the owning rule's schedule. The orchestrator never writes
// to the rule itself; it only advises, per the decision recorded for the
// open question on where auto-throttle is applied.
func Throttle(result models.FetchResult) ThrottleSignal {
	if result.Outcome == models.OutcomeOK && result.Provider.IsPaid() {
		return ThrottleSignal{ShouldThrottle: true, MinIntervalSecs: autoThrottleMinIntervalSecs}
	}
	return ThrottleSignal{}
}
