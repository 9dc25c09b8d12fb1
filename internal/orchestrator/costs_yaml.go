package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fabianmarian8/sentinel-sub000/internal/models"
)

type yamlCostFile struct {
	Providers map[string]float64 `yaml:"providers"`
}

// LoadCostTableFromFile parses an operator-editable per-provider cost
// table, falling back to DefaultCostTable's baseline for any provider the
// file omits.
func LoadCostTableFromFile(path string) (*StaticCostTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read cost table %s: %w", path, err)
	}
	var doc yamlCostFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("orchestrator: parse cost table %s: %w", path, err)
	}

	table := DefaultCostTable()
	for provider, cost := range doc.Providers {
		table.costs[models.ProviderKind(provider)] = cost
	}
	return table, nil
}
