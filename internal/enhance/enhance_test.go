package enhance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/cmslens/internal/agent"
	"github.com/kestrelworks/cmslens/internal/analysis"
	"github.com/kestrelworks/cmslens/internal/detect"
	"github.com/kestrelworks/cmslens/internal/manifest"
	"github.com/kestrelworks/cmslens/internal/plugin"
	"github.com/kestrelworks/cmslens/internal/report"
	"github.com/kestrelworks/cmslens/internal/rule"
	"github.com/kestrelworks/cmslens/internal/skill"
)

const skillDoc = `---
name: sitecore-rendering
description: Safe field rendering patterns.
platform: sitecore
---
## Raw field rendering

Use the field helper instead of Html.Raw:

` + "```csharp\n@Html.Sitecore().Field(\"Body\")\n```" + `
`

func testRun() report.Run {
	findings := []rule.Finding{
		{Code: "SEC-001", Severity: rule.SeverityCritical, Category: "security", File: "Views/Hero.cshtml", Line: 12, Message: "Raw field rendering"},
		{Code: "SEC-001", Severity: rule.SeverityCritical, Category: "security", File: "Views/Promo.cshtml", Line: 4, Message: "Raw field rendering"},
		{Code: "ARCH-001", Severity: rule.SeverityWarning, Category: "architecture", File: "Repo.cs", Line: 30, Message: "Hardcoded content path"},
	}
	return report.Run{
		ID:        "run-1",
		Plugin:    "sitecore",
		Platform:  detect.PlatformSitecore,
		StartedAt: time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		Summary:   analysis.Aggregate(findings, analysis.Options{}),
		Rules: map[string]rule.Rule{
			"SEC-001": {
				Code:        "SEC-001",
				Title:       "Raw field rendering",
				Severity:    rule.SeverityCritical,
				Description: "Field value rendered without encoding.",
				Remediation: "Use the field renderer helpers.",
			},
			"ARCH-001": {
				Code:        "ARCH-001",
				Title:       "Hardcoded content path",
				Severity:    rule.SeverityWarning,
				Remediation: "Resolve items through IDs.",
			},
		},
	}
}

func testPlugin(t *testing.T) *plugin.Plugin {
	t.Helper()
	s, err := skill.Parse("skills/rendering.md", []byte(skillDoc))
	require.NoError(t, err)
	return &plugin.Plugin{
		Manifest: manifest.Plugin{Name: "sitecore", Version: "1.0.0"},
		Agents:   agent.NewRegistry(),
		Skills:   []*skill.Skill{s},
	}
}

func TestGenerate(t *testing.T) {
	doc, err := Generate(testRun(), testPlugin(t), Options{})
	require.NoError(t, err)
	text := string(doc)

	assert.Contains(t, text, "kind: enhancements")
	assert.Contains(t, text, "actions: 2")
	assert.Contains(t, text, "## 1. Raw field rendering (SEC-001)")
	assert.Contains(t, text, "## 2. Hardcoded content path (ARCH-001)")
	assert.Contains(t, text, "`Views/Hero.cshtml:12`")
	assert.Contains(t, text, "**Occurrences**: 2")
	assert.Contains(t, text, "## Further Reading")
	assert.Contains(t, text, "sitecore-rendering")
	assert.NotContains(t, text, "```csharp")
}

func TestGenerateIncludeExamples(t *testing.T) {
	doc, err := Generate(testRun(), testPlugin(t), Options{IncludeExamples: true})
	require.NoError(t, err)
	text := string(doc)

	assert.Contains(t, text, "```csharp")
	assert.Contains(t, text, `@Html.Sitecore().Field("Body")`)
}

func TestGenerateNoFindings(t *testing.T) {
	run := testRun()
	run.Summary = analysis.Aggregate(nil, analysis.Options{})
	doc, err := Generate(run, testPlugin(t), Options{})
	require.NoError(t, err)
	assert.Contains(t, string(doc), "No findings to act on")
}

func TestPlan(t *testing.T) {
	plan := Plan(testRun(), "docs/sitecore-enhancements-2026-08-31.md")
	assert.Contains(t, plan, "2 recommendation(s)")
	assert.Contains(t, plan, "SEC-001")
	assert.Contains(t, plan, "ARCH-001")
}

func TestWriteRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "out.md")
	doc, err := Generate(testRun(), testPlugin(t), Options{})
	require.NoError(t, err)

	require.NoError(t, Write(path, doc, WriteOptions{}))
	err = Write(path, doc, WriteOptions{})
	assert.ErrorContains(t, err, "already exists")
}

func TestWriteUpdateOwnedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "out.md")
	doc, err := Generate(testRun(), testPlugin(t), Options{})
	require.NoError(t, err)

	require.NoError(t, Write(path, doc, WriteOptions{}))
	require.NoError(t, Write(path, doc, WriteOptions{Update: true}))
}

func TestWriteUpdateRefusesForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# my notes\n"), 0o644))

	doc, err := Generate(testRun(), testPlugin(t), Options{})
	require.NoError(t, err)

	err = Write(path, doc, WriteOptions{Update: true})
	assert.ErrorContains(t, err, "not generated by this tool")

	require.NoError(t, Write(path, doc, WriteOptions{Force: true}))
}

func TestDefaultPath(t *testing.T) {
	date := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		filepath.Join("repo", "docs", "sitecore-enhancements-2026-08-31.md"),
		DefaultPath("repo", "sitecore", date))
}
