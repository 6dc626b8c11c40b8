// Runner driving the monthly degradation loop for one asset
package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"infrasim/internal/asset"
	"infrasim/internal/degradation"
	"infrasim/internal/logging"
	"infrasim/internal/run"

	"github.com/google/uuid"
)

// Runner executes simulation runs against an injected registry and
// announcer. Multiple runs may execute concurrently; within one run the
// monthly steps are strictly sequential.
type Runner struct {
	reg      run.Registry
	announce run.Announcer
	writer   ResultWriter // optional trajectory sink
	now      func() time.Time
}

// NewRunner creates a Runner. writer may be nil.
func NewRunner(reg run.Registry, announce run.Announcer, writer ResultWriter) *Runner {
	return &Runner{reg: reg, announce: announce, writer: writer, now: time.Now}
}

// Request describes one simulation run.
type Request struct {
	RunID    string // generated when empty
	TenantID string
	AssetID  string
	Asset    asset.Snapshot
	Config   Config
}

// Result is handed back to the caller once the run reaches a terminal
// status. Persistence of the trajectory is the caller's concern.
type Result struct {
	RunID   string
	Status  run.Status
	Results []run.MonthResult
	Summary *run.Summary
}

// Run executes the monthly loop until completion, cancellation, or
// failure, and returns the finished trajectory. It blocks; callers
// wanting asynchrony start it in a goroutine and follow progress through
// the broadcaster.
func (r *Runner) Run(ctx context.Context, req Request) (res Result, err error) {
	log := logging.FromContext(ctx)

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	res.RunID = runID

	if err := r.reg.Create(run.State{
		ID:        runID,
		TenantID:  req.TenantID,
		AssetID:   req.AssetID,
		Status:    run.StatusPending,
		StartedAt: r.now().UTC(),
	}); err != nil {
		return res, err
	}

	// Validation failures terminate the run before any month is produced.
	if verr := req.Asset.Validate(); verr != nil {
		return r.fail(res, verr)
	}
	if verr := req.Config.Validate(); verr != nil {
		return r.fail(res, verr)
	}

	if err := r.reg.SetStatus(runID, run.StatusRunning, ""); err != nil {
		return res, err
	}
	res.Status = run.StatusRunning
	r.announce.Announce(run.Event{
		Kind:     run.EventRunStarted,
		RunID:    runID,
		TenantID: req.TenantID,
		Config:   req.Config,
	})
	log.Info("run started", "run_id", runID, "asset_id", req.AssetID,
		"scenario", req.Config.Scenario, "years", req.Config.Years)

	defer func() {
		if p := recover(); p != nil {
			res, err = r.fail(res, fmt.Errorf("simulation panic: %v", p))
		}
	}()

	snap := req.Asset
	cfg := req.Config
	totalSteps := cfg.Years * 12
	scenarioMult := cfg.multiplier()
	improvement := cfg.maintenanceImprovement()

	// Traffic load is pre-multiplied once; the model rejects loads above
	// 100, so the scaled value is capped there.
	adjusted := snap
	adjusted.TrafficLoad = math.Min(snap.TrafficLoad*cfg.trafficMultiplier(), 100)

	condition := snap.Condition
	cumulative := 0.0
	replacementCost := snap.EffectiveReplacementCost()

	for step := 1; step <= totalSteps; step++ {
		if r.reg.CancelRequested(runID) {
			return r.finish(ctx, res, req, run.StatusCancelled, "cancellation requested")
		}
		if ctx.Err() != nil {
			return r.finish(ctx, res, req, run.StatusCancelled, "context cancelled")
		}

		// State entering this month: the snapshot's counters advanced by
		// the months already simulated.
		monthsSince := float64(snap.MonthsSinceMaint + step - 1)
		adjusted.AgeYears = snap.AgeYears + float64(step-1)/12
		adjusted.Condition = condition

		delta, merr := degradation.MonthlyDelta(adjusted, monthsSince/improvement)
		if merr != nil {
			return r.fail(res, fmt.Errorf("month %d: %w", step, merr))
		}
		delta *= scenarioMult

		condition = math.Max(0, condition-delta)
		cumulative += delta

		prob := degradation.FailureProbability(condition, delta*12, monthsSince)
		result := run.MonthResult{
			Month:                 step,
			Year:                  (step + 11) / 12,
			Condition:             condition,
			CumulativeDegradation: cumulative,
			FailureProbability:    prob,
			Risk:                  degradation.ClassifyRisk(condition, prob),
			MaintenanceCost:       maintenanceCost(condition, replacementCost),
		}

		if err := r.reg.Append(runID, result); err != nil {
			return r.fail(res, fmt.Errorf("append month %d: %w", step, err))
		}
		res.Results = append(res.Results, result)

		progress := int(math.Round(float64(step) / float64(totalSteps) * 100))
		if err := r.reg.SetProgress(runID, progress); err != nil {
			return r.fail(res, fmt.Errorf("progress month %d: %w", step, err))
		}
		r.announce.Announce(run.Event{
			Kind:            run.EventRunProgress,
			RunID:           runID,
			TenantID:        req.TenantID,
			Month:           &result,
			ProgressPercent: progress,
		})
		r.write(ctx, ResultRow{
			RunID:       runID,
			AssetID:     req.AssetID,
			MonthResult: result,
			Timestamp:   r.now().UTC(),
		})

		// Condition 0 means the asset has failed; the horizon is moot.
		if condition == 0 {
			break
		}

		if cfg.StepDelay > 0 {
			select {
			case <-time.After(cfg.StepDelay):
			case <-ctx.Done():
			}
		}
	}

	return r.finish(ctx, res, req, run.StatusCompleted, "")
}

// finish transitions the run to a terminal completed or cancelled state,
// announces it, and derives the summary.
func (r *Runner) finish(ctx context.Context, res Result, req Request, status run.Status, reason string) (Result, error) {
	log := logging.FromContext(ctx)
	runID := res.RunID

	if status == run.StatusCompleted {
		// A completed run is fully resolved even when the asset failed
		// before the horizon.
		_ = r.reg.SetProgress(runID, 100)
	}
	if err := r.reg.SetStatus(runID, status, ""); err != nil {
		return res, err
	}
	res.Status = status

	now := r.now().UTC()
	switch status {
	case run.StatusCompleted:
		r.announce.Announce(run.Event{
			Kind:        run.EventRunCompleted,
			RunID:       runID,
			TenantID:    req.TenantID,
			CompletedAt: &now,
		})
	case run.StatusCancelled:
		r.announce.Announce(run.Event{
			Kind:     run.EventRunCancelled,
			RunID:    runID,
			TenantID: req.TenantID,
			Reason:   reason,
		})
	}

	summary := Summarize(res.Results, req.Asset.EffectiveReplacementCost(), now)
	res.Summary = &summary

	log.Info("run finished", "run_id", runID, "status", status, "months", len(res.Results))
	return res, nil
}

// fail records a terminal failed state. Month results already produced
// stay in the registry.
func (r *Runner) fail(res Result, cause error) (Result, error) {
	_ = r.reg.SetStatus(res.RunID, run.StatusFailed, cause.Error())
	res.Status = run.StatusFailed
	st, _ := r.reg.Snapshot(res.RunID)
	r.announce.Announce(run.Event{
		Kind:     run.EventRunFailed,
		RunID:    res.RunID,
		TenantID: st.TenantID,
		Error:    cause.Error(),
	})
	return res, cause
}

// write pushes a row to the trajectory sink. Sink failures are logged
// and never interrupt the loop.
func (r *Runner) write(ctx context.Context, row ResultRow) {
	if r.writer == nil {
		return
	}
	if err := r.writer.Write(row); err != nil {
		logging.FromContext(ctx).Error("result write failed", "run_id", row.RunID, "month", row.Month, "err", err)
	}
}
