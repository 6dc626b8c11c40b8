package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"infrasim/internal/asset"
	"infrasim/internal/logging"
	"infrasim/internal/run"
	"infrasim/internal/sim"
)

type mapProvider map[string]asset.Snapshot

func (m mapProvider) Snapshot(id string) (asset.Snapshot, error) {
	s, ok := m[id]
	if !ok {
		return asset.Snapshot{}, asset.ErrNotFound
	}
	return s, nil
}

func testSnapshot() asset.Snapshot {
	return asset.Snapshot{
		Material:              asset.MaterialAsphalt,
		AgeYears:              10,
		ExpectedLifespanYears: 25,
		TrafficLoad:           50,
		Humidity:              0.8,
		Salinity:              0.3,
		Temperature:           0.6,
		MaintenanceInterval:   24,
		MonthsSinceMaint:      24,
		Condition:             90,
		ReplacementCost:       100000,
	}
}

type fixture struct {
	ts       *httptest.Server
	registry *run.MemoryRegistry
	cancel   context.CancelFunc
}

func newFixture(t *testing.T, defaults sim.Config) *fixture {
	t.Helper()
	logger := logging.New()
	registry := run.NewMemoryRegistry()
	hub := run.NewBroadcaster(registry, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	runner := sim.NewRunner(registry, hub, nil)
	provider := mapProvider{"road-1": testSnapshot()}
	srv := New(registry, hub, runner, provider, defaults, logger)

	ts := httptest.NewServer(srv.Handler())
	f := &fixture{ts: ts, registry: registry, cancel: cancel}
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return f
}

func startRun(t *testing.T, ts *httptest.Server, body string) startResponse {
	t.Helper()
	resp, err := http.Post(ts.URL+"/runs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /runs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /runs status = %d, want 202", resp.StatusCode)
	}
	var sr startResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if sr.RunID == "" {
		t.Fatal("empty runId in start response")
	}
	return sr
}

func waitTerminal(t *testing.T, reg *run.MemoryRegistry, runID string) run.State {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := reg.Snapshot(runID); ok && st.Status.Terminal() {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never reached a terminal status", runID)
	return run.State{}
}

func TestStartRun_CompletesAndServesSnapshot(t *testing.T) {
	f := newFixture(t, sim.Config{Years: 1, Scenario: sim.ScenarioStandard})

	sr := startRun(t, f.ts, `{"assetId":"road-1","tenantId":"acme"}`)
	st := waitTerminal(t, f.registry, sr.RunID)
	if st.Status != run.StatusCompleted {
		t.Fatalf("status = %s, want completed", st.Status)
	}
	if len(st.Results) != 12 || st.Progress != 100 {
		t.Errorf("results = %d progress = %d, want 12 and 100", len(st.Results), st.Progress)
	}

	resp, err := http.Get(f.ts.URL + "/runs/" + sr.RunID)
	if err != nil {
		t.Fatalf("GET /runs/{id}: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /runs/{id} status = %d, want 200", resp.StatusCode)
	}
	var got run.State
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if got.ID != sr.RunID || got.Status != run.StatusCompleted {
		t.Errorf("unexpected state over HTTP: %+v", got)
	}
}

func TestStartRun_UnknownAsset(t *testing.T) {
	f := newFixture(t, sim.Config{Years: 1})

	resp, err := http.Post(f.ts.URL+"/runs", "application/json",
		bytes.NewReader([]byte(`{"assetId":"nope"}`)))
	if err != nil {
		t.Fatalf("POST /runs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if runs := f.registry.List(); len(runs) != 0 {
		t.Errorf("registry should stay empty, got %d runs", len(runs))
	}
}

func TestStartRun_InvalidConfig(t *testing.T) {
	f := newFixture(t, sim.Config{Years: 1})

	resp, err := http.Post(f.ts.URL+"/runs", "application/json",
		bytes.NewReader([]byte(`{"assetId":"road-1","config":{"years":5,"scenario":"doomsday"}}`)))
	if err != nil {
		t.Fatalf("POST /runs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCancelRun(t *testing.T) {
	f := newFixture(t, sim.Config{Years: 50, Scenario: sim.ScenarioStandard, StepDelay: 5 * time.Millisecond})

	sr := startRun(t, f.ts, `{"assetId":"road-1","tenantId":"acme"}`)

	resp, err := http.Post(f.ts.URL+"/runs/"+sr.RunID+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("cancel status = %d, want 202", resp.StatusCode)
	}

	st := waitTerminal(t, f.registry, sr.RunID)
	if st.Status != run.StatusCancelled {
		t.Errorf("status = %s, want cancelled", st.Status)
	}
	if len(st.Results) >= 50*12 {
		t.Errorf("expected a partial trajectory, got %d months", len(st.Results))
	}
}

func TestCancelRun_Unknown(t *testing.T) {
	f := newFixture(t, sim.Config{Years: 1})

	resp, err := http.Post(f.ts.URL+"/runs/ghost/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocket_LateSubscribeGetsSnapshot(t *testing.T) {
	f := newFixture(t, sim.Config{Years: 1, Scenario: sim.ScenarioStandard})

	sr := startRun(t, f.ts, `{"assetId":"road-1","tenantId":"acme"}`)
	waitTerminal(t, f.registry, sr.RunID)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	sub := controlMessage{Action: "subscribe-run", RunID: sr.RunID}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("send subscribe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ev run.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Kind != run.EventRunSnapshot {
		t.Fatalf("first event kind = %s, want run-snapshot", ev.Kind)
	}
	if ev.State == nil || ev.State.Status != run.StatusCompleted || ev.State.Progress != 100 {
		t.Errorf("snapshot state = %+v, want completed at 100", ev.State)
	}
}

func TestWebSocket_CancelAction(t *testing.T) {
	f := newFixture(t, sim.Config{Years: 50, Scenario: sim.ScenarioStandard, StepDelay: 5 * time.Millisecond})

	sr := startRun(t, f.ts, `{"assetId":"road-1","tenantId":"acme"}`)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(controlMessage{Action: "request-cancel", RunID: sr.RunID}); err != nil {
		t.Fatalf("send cancel: %v", err)
	}

	st := waitTerminal(t, f.registry, sr.RunID)
	if st.Status != run.StatusCancelled {
		t.Errorf("status = %s, want cancelled", st.Status)
	}
}
