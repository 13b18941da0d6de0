// Package enhance turns a completed analysis run into a recommendation
// document: an actionable, prioritized improvement plan the team can work
// through, optionally enriched with code examples mined from the plugin's
// skill documents.
package enhance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kestrelworks/cmslens/internal/docfmt"
	"github.com/kestrelworks/cmslens/internal/plugin"
	"github.com/kestrelworks/cmslens/internal/report"
	"github.com/kestrelworks/cmslens/internal/rule"
)

// DocKind marks generated enhancement documents in their frontmatter so
// Write can tell an owned document from a user file before replacing it.
const DocKind = "enhancements"

// Options controls document generation.
type Options struct {
	// IncludeExamples inlines skill code blocks under matching
	// recommendations.
	IncludeExamples bool
}

type envelope struct {
	Cmslens meta `yaml:"cmslens"`
}

// meta is the frontmatter of a generated document.
type meta struct {
	Kind    string `yaml:"kind"`
	Plugin  string `yaml:"plugin"`
	Run     string `yaml:"run"`
	Date    string `yaml:"date"`
	Actions int    `yaml:"actions"`
}

// recommendation groups one rule's findings into a single action item.
type recommendation struct {
	Rule      rule.Rule
	Category  string
	Locations []rule.Finding
}

// DefaultPath returns docs/{plugin}-enhancements-{date}.md under root.
func DefaultPath(root, pluginName string, date time.Time) string {
	name := fmt.Sprintf("%s-enhancements-%s.md", pluginName, date.Format(report.DateLayout))
	return filepath.Join(root, "docs", name)
}

// Generate renders the enhancement document for a run.
func Generate(run report.Run, p *plugin.Plugin, opts Options) ([]byte, error) {
	recs := collect(run)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s Enhancement Plan\n\n", titleCase(string(run.Platform)))
	fmt.Fprintf(&sb, "Based on the %s analysis of %s: score %d/100 (%s), %d finding(s).\n\n",
		run.Plugin, run.StartedAt.Format(report.DateLayout), run.Summary.Score, run.Summary.Grade, run.Summary.Total)

	if len(recs) == 0 {
		sb.WriteString("No findings to act on. Keep the current practices in place.\n")
	}
	for i, rec := range recs {
		fmt.Fprintf(&sb, "## %d. %s (%s)\n\n", i+1, rec.Rule.Title, rec.Rule.Code)
		fmt.Fprintf(&sb, "**Severity**: %s | **Category**: %s | **Occurrences**: %d\n\n",
			rec.Rule.Severity.Label(), titleCase(rec.Category), len(rec.Locations))
		if rec.Rule.Description != "" {
			sb.WriteString(rec.Rule.Description)
			sb.WriteString("\n\n")
		}
		if rec.Rule.Remediation != "" {
			fmt.Fprintf(&sb, "**Recommended change**: %s\n\n", rec.Rule.Remediation)
		}
		sb.WriteString("Affected locations:\n\n")
		for _, f := range rec.Locations {
			fmt.Fprintf(&sb, "- `%s:%d`\n", f.File, f.Line)
		}
		sb.WriteString("\n")
		if opts.IncludeExamples {
			writeExamples(&sb, p, rec)
		}
	}

	writeSkillReferences(&sb, p)

	date := run.StartedAt
	if date.IsZero() {
		date = time.Now()
	}
	return docfmt.Compose(envelope{meta{
		Kind:    DocKind,
		Plugin:  run.Plugin,
		Run:     run.ID,
		Date:    date.Format(report.DateLayout),
		Actions: len(recs),
	}}, []byte(sb.String()))
}

// Plan returns the dry-run summary: what would be written, without writing.
func Plan(run report.Run, path string) string {
	recs := collect(run)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Would write %s with %d recommendation(s):\n", path, len(recs))
	for _, rec := range recs {
		fmt.Fprintf(&sb, "  %-10s %s (%d occurrence(s))\n", rec.Rule.Code, rec.Rule.Title, len(rec.Locations))
	}
	return sb.String()
}

// WriteOptions controls how Write treats an existing document.
type WriteOptions struct {
	// Update replaces an existing document, but only one this tool wrote.
	Update bool
	// Force replaces any existing file.
	Force bool
}

// Write persists the document at path, creating parent directories.
func Write(path string, content []byte, opts WriteOptions) error {
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if !opts.Force {
			if !opts.Update {
				return fmt.Errorf("enhance: %s already exists (use --update or --force)", path)
			}
			if !ownedDocument(existing) {
				return fmt.Errorf("enhance: %s was not generated by this tool, refusing to update (use --force)", path)
			}
		}
	case os.IsNotExist(err):
		// First write.
	default:
		return fmt.Errorf("enhance: read %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("enhance: create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("enhance: write %s: %w", path, err)
	}
	return nil
}

// ownedDocument reports whether content carries this tool's frontmatter.
func ownedDocument(content []byte) bool {
	var env envelope
	if _, err := docfmt.Parse(content, &env); err != nil {
		return false
	}
	return env.Cmslens.Kind == DocKind
}

// collect groups findings by rule code, ordered by severity then code.
func collect(run report.Run) []recommendation {
	byCode := map[string]*recommendation{}
	for _, f := range run.Summary.Findings {
		rec, ok := byCode[f.Code]
		if !ok {
			rec = &recommendation{Rule: run.Rules[f.Code], Category: f.Category}
			if rec.Rule.Code == "" {
				rec.Rule = rule.Rule{Code: f.Code, Title: f.Message, Severity: f.Severity}
			}
			byCode[f.Code] = rec
		}
		rec.Locations = append(rec.Locations, f)
	}
	recs := make([]recommendation, 0, len(byCode))
	for _, rec := range byCode {
		recs = append(recs, *rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Rule.Severity != recs[j].Rule.Severity {
			return recs[i].Rule.Severity > recs[j].Rule.Severity
		}
		return recs[i].Rule.Code < recs[j].Rule.Code
	})
	return recs
}

// writeExamples inlines skill code blocks whose heading mentions the rule's
// title or code.
func writeExamples(sb *strings.Builder, p *plugin.Plugin, rec recommendation) {
	if p == nil {
		return
	}
	written := 0
	for _, s := range p.Skills {
		for _, ex := range s.Examples() {
			if !exampleMatches(ex.Heading, rec) {
				continue
			}
			fmt.Fprintf(sb, "Example (%s, %s):\n\n", s.Name, ex.Heading)
			fmt.Fprintf(sb, "```%s\n%s```\n\n", ex.Language, ex.Code)
			written++
			if written >= 2 {
				return
			}
		}
	}
}

func exampleMatches(heading string, rec recommendation) bool {
	h := strings.ToLower(heading)
	if h == "" {
		return false
	}
	if strings.Contains(h, strings.ToLower(rec.Rule.Code)) {
		return true
	}
	for _, word := range strings.Fields(strings.ToLower(rec.Rule.Title)) {
		if len(word) >= 5 && strings.Contains(h, word) {
			return true
		}
	}
	return false
}

// writeSkillReferences lists the plugin's skills as further reading.
func writeSkillReferences(sb *strings.Builder, p *plugin.Plugin) {
	if p == nil || len(p.Skills) == 0 {
		return
	}
	sb.WriteString("## Further Reading\n\n")
	for _, s := range p.Skills {
		if s.Description != "" {
			fmt.Fprintf(sb, "- **%s**: %s\n", s.Name, s.Description)
		} else {
			fmt.Fprintf(sb, "- **%s**\n", s.Name)
		}
	}
	sb.WriteString("\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
