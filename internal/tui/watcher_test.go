package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"infrasim/internal/degradation"
	"infrasim/internal/run"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestWatcherForwardsEvents(t *testing.T) {
	p := &fakeProgram{}
	w := &Watcher{program: p}

	ev := run.Event{Kind: run.EventRunProgress, RunID: "r1", ProgressPercent: 50}
	if err := w.Deliver(ev); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(p.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(p.msgs))
	}
	got, ok := p.msgs[0].(eventMsg)
	if !ok {
		t.Fatalf("expected eventMsg, got %T", p.msgs[0])
	}
	if got.ev.ProgressPercent != 50 {
		t.Errorf("progress = %d, want 50", got.ev.ProgressPercent)
	}
}

func TestModelProgressAndStatus(t *testing.T) {
	m := newModel("bridge-a7", 24)
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = mi.(model)

	mi, _ = m.Update(eventMsg{ev: run.Event{Kind: run.EventRunStarted}})
	m = mi.(model)
	if m.status != "running" {
		t.Fatalf("status = %q, want running", m.status)
	}

	month := run.MonthResult{Month: 1, Year: 1, Condition: 88.9, Risk: degradation.RiskLow}
	mi, _ = m.Update(eventMsg{ev: run.Event{Kind: run.EventRunProgress, Month: &month, ProgressPercent: 4}})
	m = mi.(model)
	if len(m.logs) != 1 || m.percent != 0.04 {
		t.Fatalf("logs = %d percent = %v, want 1 and 0.04", len(m.logs), m.percent)
	}
	if !strings.Contains(m.logs[0], "month=1") {
		t.Errorf("unexpected log line: %q", m.logs[0])
	}

	mi, _ = m.Update(eventMsg{ev: run.Event{Kind: run.EventRunCompleted}})
	m = mi.(model)
	if !m.finished || m.status != "completed" || m.percent != 1 {
		t.Errorf("terminal state not applied: status=%q percent=%v finished=%v", m.status, m.percent, m.finished)
	}
}

func TestModelSnapshotReplacesLog(t *testing.T) {
	m := newModel("bridge-a7", 12)
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = mi.(model)

	stale := run.MonthResult{Month: 1, Condition: 99}
	mi, _ = m.Update(eventMsg{ev: run.Event{Kind: run.EventRunProgress, Month: &stale, ProgressPercent: 8}})
	m = mi.(model)

	st := run.State{
		Status:   run.StatusCompleted,
		Progress: 100,
		Results: []run.MonthResult{
			{Month: 1, Year: 1, Condition: 88.9},
			{Month: 2, Year: 1, Condition: 87.8},
		},
	}
	mi, _ = m.Update(eventMsg{ev: run.Event{Kind: run.EventRunSnapshot, State: &st}})
	m = mi.(model)

	if len(m.logs) != 2 {
		t.Fatalf("expected snapshot to replace log, got %d lines", len(m.logs))
	}
	if m.status != "completed" || m.percent != 1 {
		t.Errorf("snapshot state not applied: status=%q percent=%v", m.status, m.percent)
	}
}

func TestModelCancelledReason(t *testing.T) {
	m := newModel("bridge-a7", 12)
	mi, _ := m.Update(eventMsg{ev: run.Event{Kind: run.EventRunCancelled, Reason: "cancellation requested"}})
	m = mi.(model)
	if !strings.Contains(m.status, "cancelled") || !strings.Contains(m.status, "cancellation requested") {
		t.Errorf("status = %q", m.status)
	}
}
