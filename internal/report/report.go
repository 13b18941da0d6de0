// Package report renders analysis runs as markdown documents. Every report
// opens with a YAML frontmatter provenance block so a later run (or the
// enhance command) can tell which plugin, platform, and rule set produced
// it. The default output path follows the docs/{plugin}-analysis-{date}.md
// convention.
package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kestrelworks/cmslens/internal/analysis"
	"github.com/kestrelworks/cmslens/internal/detect"
	"github.com/kestrelworks/cmslens/internal/docfmt"
	"github.com/kestrelworks/cmslens/internal/rule"
	"github.com/kestrelworks/cmslens/internal/scan"
)

// Run bundles everything one analysis produced.
type Run struct {
	ID         string
	Plugin     string
	Platform   detect.Platform
	Confidence float64
	StartedAt  time.Time
	Duration   time.Duration
	AgentNames []string
	Stats      scan.Stats
	Summary    analysis.Summary

	// Rules indexes the rules that ran by code, for the remediation appendix.
	Rules map[string]rule.Rule
}

// DateLayout is the date component of default report paths.
const DateLayout = "2006-01-02"

// DefaultPath returns docs/{plugin}-analysis-{date}.md under root.
func DefaultPath(root, pluginName string, date time.Time) string {
	name := fmt.Sprintf("%s-analysis-%s.md", pluginName, date.Format(DateLayout))
	return filepath.Join(root, "docs", name)
}

type envelope struct {
	Cmslens meta `yaml:"cmslens"`
}

type meta struct {
	Run      string `yaml:"run"`
	Plugin   string `yaml:"plugin"`
	Platform string `yaml:"platform"`
	Date     string `yaml:"date"`
	Score    int    `yaml:"score"`
	Grade    string `yaml:"grade"`
	Findings int    `yaml:"findings"`
}

// Render produces the full markdown report.
func Render(run Run) ([]byte, error) {
	if run.Plugin == "" {
		return nil, fmt.Errorf("report: plugin name is required")
	}
	env := envelope{meta{
		Run:      run.ID,
		Plugin:   run.Plugin,
		Platform: string(run.Platform),
		Date:     run.StartedAt.UTC().Format(DateLayout),
		Score:    run.Summary.Score,
		Grade:    run.Summary.Grade,
		Findings: run.Summary.Total,
	}}
	return docfmt.Compose(env, []byte(body(run)))
}

func body(run Run) string {
	var sb strings.Builder
	s := run.Summary

	fmt.Fprintf(&sb, "# %s analysis\n\n", titleCase(run.Plugin))
	fmt.Fprintf(&sb, "- **Platform**: %s (%.0f%% confidence)\n", run.Platform, run.Confidence*100)
	fmt.Fprintf(&sb, "- **Score**: %d/100 (%s)\n", s.Score, s.Grade)
	fmt.Fprintf(&sb, "- **Agents**: %s\n", strings.Join(run.AgentNames, ", "))
	fmt.Fprintf(&sb, "- **Files scanned**: %d", run.Stats.FilesScanned)
	if run.Stats.Truncated {
		sb.WriteString(" (truncated)")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "- **Duration**: %s\n\n", run.Duration.Round(time.Millisecond))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Severity | Count |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Critical | %d |\n", s.Critical)
	fmt.Fprintf(&sb, "| Warning | %d |\n", s.Warning)
	fmt.Fprintf(&sb, "| Info | %d |\n", s.Info)
	if s.Baselined > 0 {
		fmt.Fprintf(&sb, "\n%d finding(s) suppressed by baseline.\n", s.Baselined)
	}
	if s.Filtered > 0 {
		fmt.Fprintf(&sb, "\n%d finding(s) below the severity floor.\n", s.Filtered)
	}
	sb.WriteString("\n")

	if s.Total == 0 {
		sb.WriteString("No issues found.\n")
		return sb.String()
	}

	for _, tally := range s.Categories {
		fmt.Fprintf(&sb, "## %s\n\n", titleCase(tally.Category))
		sb.WriteString("| Code | Severity | File | Line | Detail |\n|---|---|---|---|---|\n")
		for _, f := range s.Findings {
			if f.Category != tally.Category {
				continue
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %d | %s |\n",
				f.Code, f.Severity.Label(), f.File, f.Line, escapePipes(f.Message))
		}
		sb.WriteString("\n")
	}

	if appendix := remediationAppendix(run); appendix != "" {
		sb.WriteString(appendix)
	}
	return sb.String()
}

func remediationAppendix(run Run) string {
	codes := map[string]struct{}{}
	for _, f := range run.Summary.Findings {
		codes[f.Code] = struct{}{}
	}
	var sorted []string
	for code := range codes {
		if r, ok := run.Rules[code]; ok && r.Remediation != "" {
			sorted = append(sorted, code)
		}
	}
	if len(sorted) == 0 {
		return ""
	}
	sort.Strings(sorted)

	var sb strings.Builder
	sb.WriteString("## Remediation\n\n")
	for _, code := range sorted {
		r := run.Rules[code]
		fmt.Fprintf(&sb, "### %s: %s\n\n%s\n\n", code, r.Title, r.Remediation)
	}
	return sb.String()
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
