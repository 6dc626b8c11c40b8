// Asset snapshot types and material wear tables
package asset

import (
	"errors"
	"fmt"
)

// Material identifies the construction material of an asset.
type Material string

// Known materials.
const (
	MaterialAsphalt  Material = "asphalt"
	MaterialConcrete Material = "concrete"
	MaterialSteel    Material = "steel"
	MaterialCastIron Material = "cast_iron"
	MaterialPVC      Material = "pvc"
	MaterialTimber   Material = "timber"
)

// DefaultAnnualWearRate is used for materials without a table entry.
const DefaultAnnualWearRate = 2.0

// annualWearRates maps materials to base condition loss per year.
var annualWearRates = map[Material]float64{
	MaterialAsphalt:  2.5,
	MaterialConcrete: 1.5,
	MaterialSteel:    1.8,
	MaterialCastIron: 2.2,
	MaterialPVC:      1.2,
	MaterialTimber:   3.0,
}

// defaultReplacementCosts provides a fallback replacement cost per material
// when the snapshot does not carry one.
var defaultReplacementCosts = map[Material]float64{
	MaterialAsphalt:  250000,
	MaterialConcrete: 400000,
	MaterialSteel:    550000,
	MaterialCastIron: 300000,
	MaterialPVC:      120000,
	MaterialTimber:   180000,
}

const fallbackReplacementCost = 200000

// Snapshot captures the physical state of one infrastructure asset at the
// moment a simulation starts. It is read-only to the simulation core.
type Snapshot struct {
	Material              Material `yaml:"material" json:"material"`
	AgeYears              float64  `yaml:"age_years" json:"ageYears"`
	ExpectedLifespanYears float64  `yaml:"expected_lifespan_years" json:"expectedLifespanYears"`
	TrafficLoad           float64  `yaml:"traffic_load" json:"trafficLoad"` // 0-100
	Humidity              float64  `yaml:"humidity" json:"humidity"`       // 0-1
	Salinity              float64  `yaml:"salinity" json:"salinity"`       // 0-1
	Temperature           float64  `yaml:"temperature" json:"temperature"` // 0-1
	MaintenanceInterval   int      `yaml:"maintenance_interval_months" json:"maintenanceIntervalMonths"`
	MonthsSinceMaint      int      `yaml:"months_since_maintenance" json:"monthsSinceMaintenance"`
	Condition             float64  `yaml:"condition" json:"condition"` // 0-100
	ReplacementCost       float64  `yaml:"replacement_cost" json:"replacementCost"`
}

// AnnualWearRate returns the material's base wear rate in condition points
// per year, falling back to DefaultAnnualWearRate for unknown materials.
func (s Snapshot) AnnualWearRate() float64 {
	if r, ok := annualWearRates[s.Material]; ok {
		return r
	}
	return DefaultAnnualWearRate
}

// EffectiveReplacementCost returns the snapshot's replacement cost, or a
// material default when none is set.
func (s Snapshot) EffectiveReplacementCost() float64 {
	if s.ReplacementCost > 0 {
		return s.ReplacementCost
	}
	if c, ok := defaultReplacementCosts[s.Material]; ok {
		return c
	}
	return fallbackReplacementCost
}

// ValidationError reports a snapshot or configuration field that was
// rejected. Rejected inputs are never silently coerced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrNotFound is returned by providers when no asset exists for an ID.
var ErrNotFound = errors.New("asset not found")

// Provider resolves asset snapshots by identifier. Implementations live
// outside the simulation core (config catalog, persistence layer).
type Provider interface {
	Snapshot(id string) (Snapshot, error)
}

// Validate checks the snapshot against model preconditions.
func (s Snapshot) Validate() error {
	if s.ExpectedLifespanYears <= 0 {
		return &ValidationError{Field: "expected_lifespan_years", Reason: "must be positive"}
	}
	if s.MaintenanceInterval <= 0 {
		return &ValidationError{Field: "maintenance_interval_months", Reason: "must be positive"}
	}
	if s.TrafficLoad < 0 || s.TrafficLoad > 100 {
		return &ValidationError{Field: "traffic_load", Reason: "must be in [0,100]"}
	}
	if s.Humidity < 0 || s.Humidity > 1 {
		return &ValidationError{Field: "humidity", Reason: "must be in [0,1]"}
	}
	if s.Salinity < 0 || s.Salinity > 1 {
		return &ValidationError{Field: "salinity", Reason: "must be in [0,1]"}
	}
	if s.Temperature < 0 || s.Temperature > 1 {
		return &ValidationError{Field: "temperature", Reason: "must be in [0,1]"}
	}
	if s.AgeYears < 0 {
		return &ValidationError{Field: "age_years", Reason: "must not be negative"}
	}
	if s.MonthsSinceMaint < 0 {
		return &ValidationError{Field: "months_since_maintenance", Reason: "must not be negative"}
	}
	if s.Condition < 0 || s.Condition > 100 {
		return &ValidationError{Field: "condition", Reason: "must be in [0,100]"}
	}
	return nil
}
