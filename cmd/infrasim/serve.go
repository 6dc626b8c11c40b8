package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"infrasim/internal/config"
	"infrasim/internal/logging"
	"infrasim/internal/notify"
	"infrasim/internal/run"
	"infrasim/internal/server"
	"infrasim/internal/sim"
)

var (
	serveAddr       string
	serveConfigPath string
	serveSchemaPath string
	servePrintOnly  bool
	serveLogFile    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve simulations over HTTP and WebSocket",
	Long:  "serve exposes run start, status, and cancellation over HTTP plus a WebSocket feed for live progress.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveConfigPath, serveSchemaPath)
		if err != nil {
			return err
		}

		logger := logging.New()
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, logger)

		var registry run.Registry = run.NewMemoryRegistry()
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			rr, err := run.NewRedisRegistry(addr)
			if err != nil {
				return err
			}
			defer rr.Close()
			registry = rr
			logger.Info("using redis registry", "addr", addr)
		}

		hub := run.NewBroadcaster(registry, logger)
		go hub.Run(ctx)

		var announce run.Announcer = hub
		if url := os.Getenv("NATS_URL"); url != "" {
			pub, err := notify.NewNATSPublisher(url, logger)
			if err != nil {
				return err
			}
			defer pub.Close()
			announce = &mirrorAnnouncer{hub: hub, mirror: pub, logger: logger}
			logger.Info("mirroring events to nats", "url", url)
		}

		writer, cleanup, err := newWriters(servePrintOnly, true, serveLogFile)
		if err != nil {
			return err
		}
		defer cleanup()

		runner := sim.NewRunner(registry, announce, writer)
		srv := server.New(registry, hub, runner, cfg.Catalog(), cfg.Simulation, logger)

		httpSrv := &http.Server{Addr: serveAddr, Handler: srv.Handler()}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		logger.Info("listening", "addr", serveAddr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

// mirrorAnnouncer forwards every event to the hub and to an external
// mirror such as the NATS publisher.
type mirrorAnnouncer struct {
	hub    *run.Broadcaster
	mirror run.Subscriber
	logger *slog.Logger
}

func (a *mirrorAnnouncer) Announce(ev run.Event) {
	a.hub.Announce(ev)
	if err := a.mirror.Deliver(ev); err != nil {
		a.logger.Warn("event mirror failed", "kind", ev.Kind, "run_id", ev.RunID, "err", err)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	serveCmd.Flags().StringVar(&serveSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	serveCmd.Flags().BoolVar(&servePrintOnly, "print-only", false, "Print result rows to STDOUT instead of writing to DB")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Path to export result rows (JSONL)")
}
