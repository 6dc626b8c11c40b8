package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"infrasim/internal/config"
	"infrasim/internal/logging"
	"infrasim/internal/run"
	"infrasim/internal/sim"
	"infrasim/internal/tui"
)

var (
	simPrintOnly  bool
	simConfigPath string
	simSchemaPath string
	simAssetID    string
	simTUI        bool
	simStepDelay  time.Duration
	simLogFile    string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run degradation simulations for configured assets",
	Long:  "simulate projects monthly asset condition over the configured horizon and writes the trajectory to the selected sinks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}

		ids := cfg.IDs()
		if simAssetID != "" {
			ids = []string{simAssetID}
		}
		if simTUI && len(ids) != 1 {
			return fmt.Errorf("--tui requires a single asset (use --asset)")
		}

		writer, cleanup, err := newWriters(simPrintOnly, simTUI, simLogFile)
		if err != nil {
			return err
		}
		defer cleanup()

		logger := logging.New()
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, logger)

		registry := run.NewMemoryRegistry()
		hub := run.NewBroadcaster(registry, logger)
		go hub.Run(ctx)
		runner := sim.NewRunner(registry, hub, writer)

		runCfg := cfg.Simulation
		runCfg.StepDelay = simStepDelay

		catalog := cfg.Catalog()
		for _, id := range ids {
			snap, err := catalog.Snapshot(id)
			if err != nil {
				return err
			}

			runID := uuid.New().String()
			var watcher *tui.Watcher
			if simTUI {
				watcher = tui.NewWatcher(id, runCfg.Years*12)
				hub.SubscribeRun(runID, watcher)
			}

			res, err := runner.Run(ctx, sim.Request{
				RunID:   runID,
				AssetID: id,
				Asset:   snap,
				Config:  runCfg,
			})
			if watcher != nil {
				hub.UnsubscribeRun(runID, watcher)
				watcher.Close()
			}
			if err != nil {
				return err
			}

			logger.Info("simulation finished",
				"run_id", res.RunID, "asset_id", id, "status", res.Status, "months", len(res.Results))
			if res.Summary != nil {
				logger.Info("cost projection",
					"asset_id", id,
					"repair_cost", res.Summary.RepairCost,
					"replacement_cost", res.Summary.ReplacementCost,
					"first_year_maintenance", res.Summary.FirstYearMaintenance,
					"total_cost", res.Summary.TotalCost)
			}
			if ctx.Err() != nil {
				break
			}
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simPrintOnly, "print-only", false, "Print result rows to STDOUT instead of writing to DB")
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	simulateCmd.Flags().StringVar(&simAssetID, "asset", "", "Simulate only the asset with this ID")
	simulateCmd.Flags().BoolVar(&simTUI, "tui", false, "Follow the run in a terminal UI")
	simulateCmd.Flags().DurationVar(&simStepDelay, "step-delay", 0, "Pause between simulated months (e.g. 100ms)")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export result rows (JSONL)")
}
