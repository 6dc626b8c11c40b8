// Closed-form monthly degradation model for infrastructure assets
package degradation

import (
	"math"

	"infrasim/internal/asset"
)

// RiskLevel classifies how close an asset is to failure.
type RiskLevel string

// Risk levels, ordered from least to most severe.
const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

const (
	environmentalCap = 2.5
	maintenanceCap   = 2.0
	ageCap           = 2.0
	probabilityCap   = 0.99
)

// MonthlyDelta computes the condition points an asset loses over one month.
// The snapshot carries the age and traffic load effective at this step;
// monthsSinceMaint is the (possibly scenario-scaled) time since the last
// maintenance. The returned delta is always >= 0.
func MonthlyDelta(s asset.Snapshot, monthsSinceMaint float64) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	base := s.AnnualWearRate() / 12
	delta := base *
		trafficAmplification(s.TrafficLoad) *
		environmentalMultiplier(s.Humidity, s.Salinity, s.Temperature) *
		maintenanceFactor(monthsSinceMaint, float64(s.MaintenanceInterval)) *
		ageFactor(s.AgeYears, s.ExpectedLifespanYears)
	return delta, nil
}

// trafficAmplification maps traffic load [0,100] onto a piecewise-linear
// wear multiplier: light traffic barely amplifies, heavy traffic triples.
func trafficAmplification(load float64) float64 {
	switch {
	case load <= 30:
		return 1.0 + load/30*0.3
	case load <= 70:
		return 1.3 + (load-30)/40*0.7
	default:
		return 2.0 + (load-70)/30*1.0
	}
}

// environmentalMultiplier combines humidity, salinity and temperature
// indices into one multiplicative factor, capped at environmentalCap.
func environmentalMultiplier(humidity, salinity, temperature float64) float64 {
	m := (0.9 + 0.6*humidity) * (1.0 + 0.8*salinity) * (0.9 + 0.5*temperature)
	return math.Min(m, environmentalCap)
}

// maintenanceFactor rewards assets within their maintenance interval and
// penalizes overdue ones. ratio = monthsSince / interval.
func maintenanceFactor(monthsSince, interval float64) float64 {
	ratio := monthsSince / interval
	switch {
	case ratio <= 1.0:
		return 0.7 + ratio*0.2
	case ratio <= 2.0:
		return 1.0 + (ratio-1.0)*0.3
	default:
		return math.Min(1.3+(ratio-2.0)*0.7, maintenanceCap)
	}
}

// ageFactor amplifies wear as an asset approaches and exceeds its
// expected lifespan.
func ageFactor(ageYears, lifespanYears float64) float64 {
	ratio := ageYears / lifespanYears
	switch {
	case ratio < 0.5:
		return 1.0
	case ratio < 0.75:
		return 1.0 + (ratio-0.5)/0.25*0.2
	case ratio < 1.0:
		return 1.2 + (ratio-0.75)/0.25*0.4
	default:
		return math.Min(1.6+(ratio-1.0)*0.8, ageCap)
	}
}

// FailureProbability estimates the chance of failure within the coming
// year from the current condition score, the annualized degradation rate
// and the months elapsed since maintenance. Result is clamped to 0.99.
func FailureProbability(condition, annualRate float64, monthsSinceMaint float64) float64 {
	var p float64
	switch {
	case condition >= 80:
		p = 0.001
	case condition >= 60:
		p = 0.01 + (80-condition)*0.002
	case condition >= 40:
		p = 0.05 + (60-condition)*0.005
	case condition >= 20:
		p = 0.15 + (40-condition)*0.015
	default:
		p = 0.45 + (20-condition)*0.025
	}
	if annualRate > 1 {
		p *= 1 + (annualRate-1)*0.5
	}
	// Higher threshold wins; the multipliers are mutually exclusive.
	if monthsSinceMaint > 36 {
		p *= 1.6
	} else if monthsSinceMaint > 24 {
		p *= 1.3
	}
	return math.Min(p, probabilityCap)
}

// ClassifyRisk derives the categorical risk level. Bands are evaluated
// most severe first; condition and probability can disagree, in which
// case the more severe band dominates.
func ClassifyRisk(condition, probability float64) RiskLevel {
	switch {
	case condition < 20 || probability > 0.4:
		return RiskCritical
	case condition < 40 || probability > 0.2:
		return RiskHigh
	case condition < 60 || probability > 0.1:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Severity returns a numeric rank for comparing risk levels.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}
