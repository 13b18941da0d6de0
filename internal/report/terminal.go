package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Preview renders a markdown report for the terminal (security-scan
// --preview). Falls back to the raw markdown when the renderer cannot be
// constructed, e.g. on dumb terminals.
func Preview(markdown []byte, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return string(markdown), nil
	}
	out, err := renderer.Render(string(markdown))
	if err != nil {
		return "", fmt.Errorf("report: render preview: %w", err)
	}
	return out, nil
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	gradeStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder())
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// TerminalSummary renders the short styled summary printed after a run.
func TerminalSummary(run Run) string {
	s := run.Summary
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s analysis (%s)", titleCase(run.Plugin), run.Platform)))
	sb.WriteString("\n")
	sb.WriteString(gradeStyle.Render(fmt.Sprintf("%s  %d/100", s.Grade, s.Score)))
	sb.WriteString("\n")
	sb.WriteString(criticalStyle.Render(fmt.Sprintf("critical: %d", s.Critical)))
	sb.WriteString("  ")
	sb.WriteString(warningStyle.Render(fmt.Sprintf("warning: %d", s.Warning)))
	sb.WriteString("  ")
	sb.WriteString(infoStyle.Render(fmt.Sprintf("info: %d", s.Info)))
	sb.WriteString("\n")
	sb.WriteString(subtleStyle.Render(fmt.Sprintf("%d files in %s", run.Stats.FilesScanned, run.Duration.Round(time.Millisecond))))
	sb.WriteString("\n")
	return sb.String()
}
