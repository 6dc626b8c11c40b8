package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"infrasim/internal/degradation"
	"infrasim/internal/run"
)

const maxLogLines = 1000

var (
	styleLow      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleMedium   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleStatus   = lipgloss.NewStyle().Bold(true)
)

func riskStyle(r degradation.RiskLevel) lipgloss.Style {
	switch r {
	case degradation.RiskCritical:
		return styleCritical
	case degradation.RiskHigh:
		return styleHigh
	case degradation.RiskMedium:
		return styleMedium
	default:
		return styleLow
	}
}

type model struct {
	assetID     string
	totalMonths int

	table    table.Model
	bar      progress.Model
	vp       viewport.Model
	logs     []string
	percent  float64
	status   string
	finished bool
	wrap     bool
	width    int
	height   int
}

func newModel(assetID string, totalMonths int) model {
	cols := []table.Column{
		{Title: "Asset", Width: 24},
		{Title: "Horizon", Width: 14},
	}
	rows := []table.Row{
		{assetID, fmt.Sprintf("%d months", totalMonths)},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	return model{
		assetID:     assetID,
		totalMonths: totalMonths,
		table:       t,
		bar:         progress.New(progress.WithDefaultGradient()),
		vp:          viewport.New(0, 0),
		status:      "waiting",
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = msg.Width - 4
		m.vp.Width = msg.Width
		m.vp.Height = msg.Height - lipgloss.Height(m.table.View()) - 5
		if m.vp.Height < 0 {
			m.vp.Height = 0
		}
		m.refresh()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refresh()
		case "j", "down":
			m.vp.LineDown(1)
		case "k", "up":
			m.vp.LineUp(1)
		}
	case eventMsg:
		m.apply(msg.ev)
	}
	return m, nil
}

func (m *model) apply(ev run.Event) {
	switch ev.Kind {
	case run.EventRunStarted:
		m.status = "running"
	case run.EventRunProgress:
		m.percent = float64(ev.ProgressPercent) / 100
		if ev.Month != nil {
			m.appendLine(monthLine(*ev.Month))
		}
	case run.EventRunCompleted:
		m.status = "completed"
		m.percent = 1
		m.finished = true
	case run.EventRunCancelled:
		m.status = "cancelled"
		if ev.Reason != "" {
			m.status += " (" + ev.Reason + ")"
		}
		m.finished = true
	case run.EventRunFailed:
		m.status = "failed: " + ev.Error
		m.finished = true
	case run.EventRunSnapshot:
		if ev.State != nil {
			m.status = string(ev.State.Status)
			m.percent = float64(ev.State.Progress) / 100
			m.logs = m.logs[:0]
			for _, r := range ev.State.Results {
				m.appendLine(monthLine(r))
			}
		}
	}
	m.refresh()
}

func monthLine(r run.MonthResult) string {
	line := fmt.Sprintf("month=%-3d year=%-2d condition=%6.2f cumulative=%6.2f prob=%.3f cost=%.0f risk=%s",
		r.Month, r.Year, r.Condition, r.CumulativeDegradation, r.FailureProbability, r.MaintenanceCost,
		riskStyle(r.Risk).Render(string(r.Risk)))
	return line
}

func (m *model) appendLine(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func (m *model) refresh() {
	lines := m.logs
	if m.wrap && m.vp.Width > 0 {
		wrapped := make([]string, len(m.logs))
		for i, l := range m.logs {
			wrapped[i] = wordwrap.String(l, m.vp.Width)
		}
		lines = wrapped
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	m.vp.GotoBottom()
}

func (m model) View() string {
	divider := styleDim.Render(strings.Repeat("─", max(m.width, 1)))
	sections := []string{
		m.table.View(),
		divider,
		m.bar.ViewAs(m.percent),
		divider,
		m.vp.View(),
		divider,
		styleStatus.Render("status: "+m.status) + styleDim.Render("  q quit · w wrap · j/k scroll"),
	}
	return strings.Join(sections, "\n")
}
