// Simulation configuration and scenario presets
package sim

import (
	"time"

	"infrasim/internal/asset"
)

// Scenario names a degradation multiplier preset for a run.
type Scenario string

// Scenario presets.
const (
	ScenarioStandard    Scenario = "standard"
	ScenarioOptimistic  Scenario = "optimistic"
	ScenarioPessimistic Scenario = "pessimistic"
	ScenarioCustom      Scenario = "custom"
)

// Config holds the caller-supplied parameters for one run.
type Config struct {
	Years    int      `yaml:"years" json:"years"`
	Scenario Scenario `yaml:"scenario" json:"scenario"`

	// Custom-scenario multipliers; ignored for the named presets.
	TrafficMultiplier      float64 `yaml:"traffic_multiplier,omitempty" json:"trafficMultiplier,omitempty"`
	MaintenanceImprovement float64 `yaml:"maintenance_improvement,omitempty" json:"maintenanceImprovement,omitempty"`
	EnvironmentalSeverity  float64 `yaml:"environmental_severity,omitempty" json:"environmentalSeverity,omitempty"`

	// StepDelay inserts an artificial pause per simulated month. Demo
	// affordance only; set via CLI flag, never part of the config file.
	StepDelay time.Duration `yaml:"-" json:"-"`
}

// Validate checks the config before a run starts.
func (c Config) Validate() error {
	if c.Years <= 0 {
		return &asset.ValidationError{Field: "years", Reason: "must be positive"}
	}
	switch c.Scenario {
	case ScenarioStandard, ScenarioOptimistic, ScenarioPessimistic, ScenarioCustom, "":
	default:
		return &asset.ValidationError{Field: "scenario", Reason: "unknown scenario " + string(c.Scenario)}
	}
	if c.TrafficMultiplier < 0 {
		return &asset.ValidationError{Field: "traffic_multiplier", Reason: "must not be negative"}
	}
	if c.MaintenanceImprovement < 0 {
		return &asset.ValidationError{Field: "maintenance_improvement", Reason: "must not be negative"}
	}
	if c.EnvironmentalSeverity < 0 {
		return &asset.ValidationError{Field: "environmental_severity", Reason: "must not be negative"}
	}
	return nil
}

// multiplier resolves the overall degradation multiplier for the scenario.
// An empty scenario means standard; a custom scenario without an explicit
// severity defaults to 1.0.
func (c Config) multiplier() float64 {
	switch c.Scenario {
	case ScenarioOptimistic:
		return 0.8
	case ScenarioPessimistic:
		return 1.3
	case ScenarioCustom:
		if c.EnvironmentalSeverity > 0 {
			return c.EnvironmentalSeverity
		}
		return 1.0
	default:
		return 1.0
	}
}

// trafficMultiplier returns the factor applied to the asset's traffic
// load before simulation; only a custom scenario can set it.
func (c Config) trafficMultiplier() float64 {
	if c.Scenario == ScenarioCustom && c.TrafficMultiplier > 0 {
		return c.TrafficMultiplier
	}
	return 1.0
}

// maintenanceImprovement returns the factor scaling the effective
// maintenance interval; only a custom scenario can set it.
func (c Config) maintenanceImprovement() float64 {
	if c.Scenario == ScenarioCustom && c.MaintenanceImprovement > 0 {
		return c.MaintenanceImprovement
	}
	return 1.0
}
