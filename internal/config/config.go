// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"infrasim/internal/asset"
	"infrasim/internal/sim"
)

// AssetEntry is one named asset in the catalog.
type AssetEntry struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name,omitempty"`
	asset.Snapshot `yaml:",inline"`
}

// SimulationConfig is the root configuration: the asset catalog plus the
// default run parameters.
type SimulationConfig struct {
	Assets     []AssetEntry `yaml:"assets"`
	Simulation sim.Config   `yaml:"simulation"`
}

// Load loads YAML config and validates it against a CUE schema.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Assets) == 0 {
		return nil, fmt.Errorf("no assets defined in %s", configPath)
	}
	return &cfg, nil
}

// Catalog wraps the configured assets as an asset.Provider.
type Catalog struct {
	byID map[string]AssetEntry
}

// Catalog builds a provider over the configured assets.
func (c *SimulationConfig) Catalog() *Catalog {
	byID := make(map[string]AssetEntry, len(c.Assets))
	for _, a := range c.Assets {
		byID[a.ID] = a
	}
	return &Catalog{byID: byID}
}

// Snapshot implements asset.Provider.
func (c *Catalog) Snapshot(id string) (asset.Snapshot, error) {
	entry, ok := c.byID[id]
	if !ok {
		return asset.Snapshot{}, fmt.Errorf("asset %q: %w", id, asset.ErrNotFound)
	}
	return entry.Snapshot, nil
}

// IDs lists the catalog's asset identifiers in config order.
func (c *SimulationConfig) IDs() []string {
	ids := make([]string, len(c.Assets))
	for i, a := range c.Assets {
		ids[i] = a.ID
	}
	return ids
}
