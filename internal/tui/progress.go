// Package tui renders analysis progress in the terminal. It follows the
// bubbletea Elm loop: pipeline events arrive as messages, Update folds them
// into the model, View draws stage and agent status with a spinner while the
// run is live.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kestrelworks/cmslens/internal/pipeline"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	stageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// EventMsg wraps one pipeline event for the Elm loop.
type EventMsg struct {
	Event pipeline.Event
}

// DoneMsg ends the program. Err carries the run failure, if any.
type DoneMsg struct {
	Err error
}

type stageStatus int

const (
	stagePending stageStatus = iota
	stageRunning
	stageDone
)

type agentStatus struct {
	running  bool
	findings int
	err      error
}

// Progress is the live-run model.
type Progress struct {
	title   string
	spinner spinner.Model

	stages map[string]stageStatus
	agents map[string]*agentStatus
	files  int

	done bool
	err  error
}

// NewProgress returns a model titled for the plugin being run.
func NewProgress(pluginName string) Progress {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stageStyle
	return Progress{
		title:   fmt.Sprintf("cmslens analyze (%s)", pluginName),
		spinner: sp,
		stages:  map[string]stageStatus{},
		agents:  map[string]*agentStatus{},
	}
}

func (m Progress) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			return m, tea.Quit
		}
	case EventMsg:
		m.apply(msg.Event)
		return m, nil
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Progress) apply(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventStageStarted:
		m.stages[e.Stage] = stageRunning
	case pipeline.EventStageFinished:
		m.stages[e.Stage] = stageDone
	case pipeline.EventAgentStarted:
		m.agents[e.Agent] = &agentStatus{running: true}
	case pipeline.EventAgentFinished:
		m.agents[e.Agent] = &agentStatus{findings: e.Findings, err: e.Err}
	case pipeline.EventFileScanned:
		m.files++
	}
}

func (m Progress) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	for _, stage := range []string{pipeline.StageDetect, pipeline.StageAgents, pipeline.StageAggregate} {
		sb.WriteString(m.stageLine(stage))
		sb.WriteString("\n")
		if stage == pipeline.StageAgents {
			for _, line := range m.agentLines() {
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
	}

	if m.files > 0 {
		sb.WriteString(countStyle.Render(fmt.Sprintf("\n%d file(s) scanned", m.files)))
		sb.WriteString("\n")
	}
	if m.done && m.err != nil {
		sb.WriteString(errStyle.Render(fmt.Sprintf("\nrun failed: %v", m.err)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Progress) stageLine(stage string) string {
	switch m.stages[stage] {
	case stageRunning:
		return fmt.Sprintf("%s %s", m.spinner.View(), stageStyle.Render(stage))
	case stageDone:
		return doneStyle.Render("✓ " + stage)
	}
	return pendingStyle.Render("· " + stage)
}

func (m Progress) agentLines() []string {
	names := make([]string, 0, len(m.agents))
	for name := range m.agents {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		status := m.agents[name]
		var line string
		switch {
		case status.err != nil:
			line = errStyle.Render(fmt.Sprintf("    ✗ %s: %v", name, status.err))
		case status.running:
			line = fmt.Sprintf("    %s %s", m.spinner.View(), name)
		default:
			line = doneStyle.Render(fmt.Sprintf("    ✓ %s", name)) +
				countStyle.Render(fmt.Sprintf(" (%d finding(s))", status.findings))
		}
		lines = append(lines, line)
	}
	return lines
}
