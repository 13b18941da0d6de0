package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/kestrelworks/cmslens/internal/pipeline"
)

func apply(m Progress, msgs ...tea.Msg) Progress {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Progress)
	}
	return m
}

func TestProgressStageTransitions(t *testing.T) {
	m := NewProgress("sitecore")
	assert.Contains(t, m.View(), "· detect")

	m = apply(m, EventMsg{Event: pipeline.Event{Type: pipeline.EventStageStarted, Stage: pipeline.StageDetect}})
	assert.NotContains(t, m.View(), "· detect")

	m = apply(m,
		EventMsg{Event: pipeline.Event{Type: pipeline.EventStageFinished, Stage: pipeline.StageDetect}},
		EventMsg{Event: pipeline.Event{Type: pipeline.EventStageStarted, Stage: pipeline.StageAgents}},
	)
	view := m.View()
	assert.Contains(t, view, "✓ detect")
	assert.Contains(t, view, "cmslens analyze (sitecore)")
}

func TestProgressAgentLines(t *testing.T) {
	m := apply(NewProgress("sitecore"),
		EventMsg{Event: pipeline.Event{Type: pipeline.EventAgentStarted, Agent: "sitecore-security"}},
		EventMsg{Event: pipeline.Event{Type: pipeline.EventAgentFinished, Agent: "sitecore-security", Findings: 3}},
		EventMsg{Event: pipeline.Event{Type: pipeline.EventAgentStarted, Agent: "sitecore-architecture"}},
	)
	view := m.View()
	assert.Contains(t, view, "✓ sitecore-security")
	assert.Contains(t, view, "(3 finding(s))")
	assert.Contains(t, view, "sitecore-architecture")
	// Agents render in name order.
	assert.Less(t,
		strings.Index(view, "sitecore-architecture"),
		strings.Index(view, "sitecore-security"))
}

func TestProgressFileCounter(t *testing.T) {
	m := apply(NewProgress("sitecore"),
		EventMsg{Event: pipeline.Event{Type: pipeline.EventFileScanned, File: "a.cs"}},
		EventMsg{Event: pipeline.Event{Type: pipeline.EventFileScanned, File: "b.cs"}},
	)
	assert.Contains(t, m.View(), "2 file(s) scanned")
}

func TestProgressDone(t *testing.T) {
	next, cmd := NewProgress("sitecore").Update(DoneMsg{Err: errors.New("scan failed")})
	m := next.(Progress)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "run failed: scan failed")
}

func TestProgressAgentError(t *testing.T) {
	m := apply(NewProgress("sitecore"),
		EventMsg{Event: pipeline.Event{Type: pipeline.EventAgentFinished, Agent: "sitecore-security", Err: errors.New("boom")}},
	)
	assert.Contains(t, m.View(), "✗ sitecore-security: boom")
}
