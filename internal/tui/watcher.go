// Terminal UI for following a simulation run live
package tui

import (
	"os"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"infrasim/internal/run"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// eventMsg carries one broadcast event into the model.
type eventMsg struct{ ev run.Event }

// Watcher renders run progress in a bubbletea TUI. It subscribes to the
// broadcaster like any other consumer.
type Watcher struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewWatcher starts a bubbletea program for one run.
func NewWatcher(assetID string, totalMonths int) *Watcher {
	w := &Watcher{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newModel(assetID, totalMonths), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		// Quitting the TUI with q should also stop the simulation.
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Deliver implements run.Subscriber.
func (w *Watcher) Deliver(ev run.Event) error {
	w.program.Send(eventMsg{ev: ev})
	return nil
}

// Close shuts the program down and waits for the terminal to be restored.
func (w *Watcher) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}
