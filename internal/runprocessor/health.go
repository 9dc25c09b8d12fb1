package runprocessor

import "github.com/fabianmarian8/sentinel-sub000/internal/models"

// successHealthDelta returns the healthScore delta for a successful run
//: +5, capped at 100 by the caller, with an extra -2
// penalty when a fallback provider (not the first attempted) served the
// request.
func successHealthDelta(usedFallback bool) int {
	delta := 5
	if usedFallback {
		delta -= 2
	}
	return delta
}

func applyHealthDelta(score, delta int) int {
	return models.ClampHealthScore(score + delta)
}

func errorHealthDelta(code models.ErrorCode) int {
	return -code.HealthPenalty()
}
