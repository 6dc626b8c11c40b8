// HTTP and WebSocket surface for starting and following simulation runs
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"infrasim/internal/asset"
	"infrasim/internal/logging"
	"infrasim/internal/run"
	"infrasim/internal/sim"
)

// Server exposes the run lifecycle over HTTP plus a WebSocket feed for
// progress events. Runs execute in their own goroutines; the HTTP layer
// only launches and observes them.
type Server struct {
	registry run.Registry
	hub      *run.Broadcaster
	runner   *sim.Runner
	assets   asset.Provider
	defaults sim.Config
	logger   *slog.Logger

	upgrader websocket.Upgrader
}

// New wires a Server from its collaborators. defaults is used when a
// start request carries no config of its own.
func New(registry run.Registry, hub *run.Broadcaster, runner *sim.Runner, assets asset.Provider, defaults sim.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: registry,
		hub:      hub,
		runner:   runner,
		assets:   assets,
		defaults: defaults,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs", s.startRun)
	mux.HandleFunc("GET /runs", s.listRuns)
	mux.HandleFunc("GET /runs/{id}", s.getRun)
	mux.HandleFunc("POST /runs/{id}/cancel", s.cancelRun)
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /healthz", s.health)
	return mux
}

type startRequest struct {
	AssetID  string      `json:"assetId"`
	TenantID string      `json:"tenantId"`
	Config   *sim.Config `json:"config,omitempty"`
}

type startResponse struct {
	RunID string `json:"runId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// startRun validates the request, registers a run ID, and launches the
// simulation in the background. Returns 202 with the run ID; clients
// follow progress over the WebSocket feed or by polling GET /runs/{id}.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AssetID == "" {
		s.writeError(w, http.StatusBadRequest, "assetId is required")
		return
	}

	snap, err := s.assets.Snapshot(req.AssetID)
	if err != nil {
		if errors.Is(err, asset.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "unknown asset "+req.AssetID)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cfg := s.defaults
	if req.Config != nil {
		cfg = *req.Config
	}
	cfg.StepDelay = s.defaults.StepDelay

	// Rejecting bad input here keeps failed-validation runs out of the
	// registry entirely.
	if verr := snap.Validate(); verr != nil {
		s.writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	if verr := cfg.Validate(); verr != nil {
		s.writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	runID := uuid.New().String()
	// The run outlives the HTTP request, so it gets its own context.
	ctx := logging.NewContext(context.Background(), s.logger)
	go func() {
		_, rerr := s.runner.Run(ctx, sim.Request{
			RunID:    runID,
			TenantID: req.TenantID,
			AssetID:  req.AssetID,
			Asset:    snap,
			Config:   cfg,
		})
		if rerr != nil {
			s.logger.Error("run ended with error", "run_id", runID, "err", rerr)
		}
	}()

	s.logger.Info("run accepted", "run_id", runID, "asset_id", req.AssetID, "tenant_id", req.TenantID)
	s.writeJSON(w, http.StatusAccepted, startResponse{RunID: runID})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, ok := s.registry.Snapshot(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown run "+id)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// cancelRun flags the run for cooperative cancellation. Idempotent, and
// a no-op for runs already in a terminal status.
func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.RequestCancel(id); err != nil {
		if errors.Is(err, run.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "unknown run "+id)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"runId": id, "status": "cancel-requested"})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// serveWS upgrades the connection and attaches a client to the hub.
// Subscriptions are managed by control messages sent over the socket.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	client := newClient(conn, s.hub, s.registry, s.logger)
	go client.writePump()
	go client.readPump()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
