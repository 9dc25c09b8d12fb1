package orchestrator

import "github.com/fabianmarian8/sentinel-sub000/internal/models"

// StaticCostTable is the default CostTable. It can be built from an
// operator-editable provider-cost YAML file (LoadCostTableFromFile); once
// built it does not change, and the file is not watched for edits.
type StaticCostTable struct {
	costs map[models.ProviderKind]float64
}

// DefaultCostTable returns the baseline per-request costs for the paid
// providers. Free providers cost nothing.
func DefaultCostTable() *StaticCostTable {
	return &StaticCostTable{costs: map[models.ProviderKind]float64{
		models.ProviderBrightdata:         0.0015,
		models.ProviderScrapingBrowser:    0.0050,
		models.ProviderTwocaptchaProxy:    0.0030,
		models.ProviderTwocaptchaDatadome: 0.0045,
	}}
}

func NewCostTable(costs []models.ProviderCost) *StaticCostTable {
	t := &StaticCostTable{costs: make(map[models.ProviderKind]float64, len(costs))}
	for _, c := range costs {
		t.costs[c.Provider] = c.CostUSD
	}
	return t
}

func (t *StaticCostTable) CostUSD(provider models.ProviderKind) float64 {
	return t.costs[provider]
}
