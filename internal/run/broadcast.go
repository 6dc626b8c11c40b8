package run

import (
	"context"
	"log/slog"
	"sync"
)

// Subscriber receives lifecycle and progress events. Delivery is
// best-effort and at-most-once; a failing subscriber never affects the
// run that produced the event.
type Subscriber interface {
	Deliver(Event) error
}

// Announcer is the narrow surface the runner needs for fan-out.
type Announcer interface {
	Announce(Event)
}

const eventBuffer = 256

// Broadcaster fans events out to subscribers grouped by run ID and by
// tenant ID. Events enter through a buffered channel so announcing never
// blocks the simulation loop; a full buffer drops the event.
type Broadcaster struct {
	reg    Registry
	logger *slog.Logger

	mu      sync.RWMutex
	runs    map[string]map[Subscriber]struct{}
	tenants map[string]map[Subscriber]struct{}

	events chan Event
}

// NewBroadcaster creates a broadcaster reading snapshots from reg.
func NewBroadcaster(reg Registry, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		reg:     reg,
		logger:  logger,
		runs:    make(map[string]map[Subscriber]struct{}),
		tenants: make(map[string]map[Subscriber]struct{}),
		events:  make(chan Event, eventBuffer),
	}
}

// Run dispatches queued events until the context is done. Must be
// started in its own goroutine before announcing.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case ev := <-b.events:
			b.dispatch(ev)
		case <-ctx.Done():
			return
		}
	}
}

// Announce queues an event for fan-out. Never blocks; if the buffer is
// full the event is dropped and logged.
func (b *Broadcaster) Announce(ev Event) {
	select {
	case b.events <- ev:
	default:
		b.logger.Warn("event buffer full, dropping event", "kind", ev.Kind, "run_id", ev.RunID)
	}
}

// SubscribeRun adds a subscriber for one run and immediately delivers the
// current state snapshot if the run exists. Idempotent: re-subscribing an
// already registered subscriber delivers no second snapshot.
func (b *Broadcaster) SubscribeRun(runID string, sub Subscriber) (State, bool) {
	b.mu.Lock()
	if b.runs[runID] == nil {
		b.runs[runID] = make(map[Subscriber]struct{})
	}
	_, already := b.runs[runID][sub]
	b.runs[runID][sub] = struct{}{}
	b.mu.Unlock()

	st, ok := b.reg.Snapshot(runID)
	if ok && !already {
		b.deliver(sub, Event{Kind: EventRunSnapshot, RunID: runID, TenantID: st.TenantID, State: &st})
	}
	return st, ok
}

// UnsubscribeRun removes a subscriber from one run. Idempotent.
func (b *Broadcaster) UnsubscribeRun(runID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.runs[runID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.runs, runID)
		}
	}
}

// JoinTenant adds a subscriber for tenant-level notifications. Idempotent.
func (b *Broadcaster) JoinTenant(tenantID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tenants[tenantID] == nil {
		b.tenants[tenantID] = make(map[Subscriber]struct{})
	}
	b.tenants[tenantID][sub] = struct{}{}
}

// LeaveTenant removes a tenant-level subscriber. Idempotent.
func (b *Broadcaster) LeaveTenant(tenantID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.tenants[tenantID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.tenants, tenantID)
		}
	}
}

// Drop disconnects a subscriber from every run and tenant group.
func (b *Broadcaster) Drop(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, subs := range b.runs {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.runs, id)
		}
	}
	for id, subs := range b.tenants {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.tenants, id)
		}
	}
}

func (b *Broadcaster) dispatch(ev Event) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.runs[ev.RunID]))
	for s := range b.runs[ev.RunID] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, ev)
	}

	if terminalKind(ev.Kind) {
		b.notifyTenant(ev)
	}
}

// notifyTenant mirrors a terminal run event to the run's tenant group.
func (b *Broadcaster) notifyTenant(ev Event) {
	if ev.TenantID == "" {
		return
	}
	note := Event{
		Kind:     EventTenantNotification,
		RunID:    ev.RunID,
		TenantID: ev.TenantID,
		Type:     string(ev.Kind),
		Message:  tenantMessage(ev),
	}

	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.tenants[ev.TenantID]))
	for s := range b.tenants[ev.TenantID] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, note)
	}
}

// deliver pushes one event to one subscriber. Failures are logged and
// swallowed so broadcast problems never alter a run's outcome.
func (b *Broadcaster) deliver(sub Subscriber, ev Event) {
	if err := sub.Deliver(ev); err != nil {
		b.logger.Warn("event delivery failed", "kind", ev.Kind, "run_id", ev.RunID, "err", err)
	}
}

func terminalKind(k EventKind) bool {
	return k == EventRunCompleted || k == EventRunCancelled || k == EventRunFailed
}

func tenantMessage(ev Event) string {
	switch ev.Kind {
	case EventRunCompleted:
		return "simulation run completed"
	case EventRunCancelled:
		return "simulation run cancelled"
	case EventRunFailed:
		return "simulation run failed: " + ev.Error
	default:
		return ""
	}
}
