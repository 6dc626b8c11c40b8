package run

import (
	"sort"
	"sync"
	"time"
)

type entry struct {
	state  State
	cancel bool
}

// MemoryRegistry is the synchronized in-process Registry implementation.
type MemoryRegistry struct {
	mu   sync.RWMutex
	runs map[string]*entry
}

// NewMemoryRegistry creates an empty in-process registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{runs: make(map[string]*entry)}
}

// Create registers a new run. Creating an existing ID is a no-op that
// leaves the stored state untouched.
func (m *MemoryRegistry) Create(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[st.ID]; ok {
		return nil
	}
	m.runs[st.ID] = &entry{state: cloneState(st)}
	return nil
}

// Snapshot returns a deep copy of the run's current state.
func (m *MemoryRegistry) Snapshot(runID string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.runs[runID]
	if !ok {
		return State{}, false
	}
	return cloneState(e.state), true
}

// List returns copies of all tracked runs, most recent first.
func (m *MemoryRegistry) List() []State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]State, 0, len(m.runs))
	for _, e := range m.runs {
		out = append(out, cloneState(e.state))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Append adds a month result to a live run.
func (m *MemoryRegistry) Append(runID string, r MonthResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	if e.state.Status.Terminal() {
		return ErrTerminal
	}
	e.state.Results = append(e.state.Results, r)
	return nil
}

// SetStatus transitions the run. Terminal states accept no further
// transitions; errMsg is recorded only for failed runs.
func (m *MemoryRegistry) SetStatus(runID string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	if e.state.Status.Terminal() {
		return ErrTerminal
	}
	e.state.Status = status
	if status == StatusFailed {
		e.state.Error = errMsg
	}
	if status.Terminal() {
		now := time.Now().UTC()
		e.state.CompletedAt = &now
	}
	return nil
}

// SetProgress updates the percent complete. Progress never moves backward.
func (m *MemoryRegistry) SetProgress(runID string, pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	if e.state.Status.Terminal() {
		return ErrTerminal
	}
	if pct > e.state.Progress {
		e.state.Progress = pct
	}
	return nil
}

// RequestCancel flags the run for cooperative cancellation. Idempotent;
// requesting cancel on a finished run is a no-op.
func (m *MemoryRegistry) RequestCancel(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	e.cancel = true
	return nil
}

// CancelRequested reports whether cancellation was requested.
func (m *MemoryRegistry) CancelRequested(runID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.runs[runID]
	return ok && e.cancel
}

// Evict drops the run from the registry.
func (m *MemoryRegistry) Evict(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
}

func cloneState(st State) State {
	cp := st
	cp.Results = make([]MonthResult, len(st.Results))
	copy(cp.Results, st.Results)
	if st.CompletedAt != nil {
		t := *st.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}
