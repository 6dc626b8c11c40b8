package sim

import (
	"time"

	"infrasim/internal/degradation"
	"infrasim/internal/run"
)

// monthDuration converts a month index into wall-clock time for the
// failure window, at 30 days per month.
const monthDuration = 30 * 24 * time.Hour

// maintenanceCost estimates the upkeep spend for one month at the given
// condition, as a fraction of the replacement cost.
func maintenanceCost(condition, replacementCost float64) float64 {
	switch {
	case condition < 40:
		return 0.30 * replacementCost
	case condition < 60:
		return 0.10 * replacementCost
	case condition < 80:
		return 0.02 * replacementCost
	default:
		return 0
	}
}

// Summarize derives the post-run metrics from a finished trajectory. The
// failure window opens at the first critical-risk month and closes at the
// last produced month; it is absent when no month turned critical.
func Summarize(results []run.MonthResult, replacementCost float64, now time.Time) run.Summary {
	var s run.Summary
	if len(results) == 0 {
		return s
	}

	firstCritical := 0
	conditionBelow40 := false
	reachedZero := false
	for _, r := range results {
		if firstCritical == 0 && r.Risk == degradation.RiskCritical {
			firstCritical = r.Month
		}
		if r.Condition < 40 {
			conditionBelow40 = true
		}
		if r.Condition == 0 {
			reachedZero = true
		}
		if r.Month <= 12 {
			s.FirstYearMaintenance += r.MaintenanceCost
		}
	}

	if firstCritical > 0 {
		start := now.Add(time.Duration(firstCritical) * monthDuration)
		end := now.Add(time.Duration(results[len(results)-1].Month) * monthDuration)
		s.FailureWindowStart = &start
		s.FailureWindowEnd = &end
	}

	if conditionBelow40 {
		s.RepairCost = 0.3 * replacementCost
	}
	if reachedZero {
		s.ReplacementCost = replacementCost
	}
	s.TotalCost = s.RepairCost + s.ReplacementCost + s.FirstYearMaintenance
	return s
}
