package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kestrelworks/cmslens/internal/agent"
	"github.com/kestrelworks/cmslens/internal/detect"
	"github.com/kestrelworks/cmslens/internal/manifest"
	"github.com/kestrelworks/cmslens/internal/plugin"
	"github.com/kestrelworks/cmslens/internal/rule"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const securityAgentDoc = `---
name: test-security
plugin: sitecore
category: security
rules:
  - code: SEC-001
    title: Raw field rendering
    severity: critical
    description: Field value rendered without encoding.
    remediation: Use the field renderer helpers.
    patterns:
      - 'Html\.Raw\('
---
Guidance body.
`

const archAgentDoc = `---
name: test-architecture
plugin: sitecore
category: architecture
rules:
  - code: ARCH-001
    title: Direct item access by path
    severity: warning
    description: Content addressed by hardcoded path.
    remediation: Resolve items through IDs or a content resolver.
    patterns:
      - '"/sitecore/content/'
---
Guidance body.
`

func testPlugin(t *testing.T, docs ...string) *plugin.Plugin {
	t.Helper()
	reg := agent.NewRegistry()
	for _, doc := range docs {
		a, err := agent.Parse("agents/test.md", []byte(doc))
		require.NoError(t, err)
		require.NoError(t, reg.Register(a))
	}
	return &plugin.Plugin{
		Manifest: manifest.Plugin{Name: "sitecore", Version: "1.0.0"},
		Agents:   reg,
		Source:   "test",
	}
}

func testRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Site.csproj": `<PackageReference Include="Sitecore.Kernel" Version="10.3.0" />`,
		"Views/Hero.cshtml": "@Html.Raw(Model.Body)\n" +
			`var home = db.GetItem("/sitecore/content/Home");` + "\n",
		"Views/Clean.cshtml": "@Html.DisplayFor(m => m.Title)\n",
	}
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func TestRun(t *testing.T) {
	p := testPlugin(t, securityAgentDoc, archAgentDoc)
	events := make(chan Event, 64)

	run, err := Run(context.Background(), Options{
		Plugin: p,
		Root:   testRoot(t),
		Events: events,
		Clock:  func() time.Time { return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC) },
		ID:     func() string { return "run-1" },
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "sitecore", run.Plugin)
	assert.Equal(t, detect.PlatformSitecore, run.Platform)
	assert.Equal(t, []string{"test-architecture", "test-security"}, run.AgentNames)
	assert.Equal(t, 2, run.Summary.Total)
	assert.Equal(t, 1, run.Summary.Critical)
	assert.Equal(t, 1, run.Summary.Warning)
	assert.Equal(t, 87, run.Summary.Score)
	assert.Contains(t, run.Rules, "SEC-001")
	assert.Contains(t, run.Rules, "ARCH-001")
	assert.Greater(t, run.Stats.FilesScanned, 0)

	close(events)
	var started, finished []string
	agentEvents := 0
	for e := range events {
		switch e.Type {
		case EventStageStarted:
			started = append(started, e.Stage)
		case EventStageFinished:
			finished = append(finished, e.Stage)
		case EventAgentStarted, EventAgentFinished:
			agentEvents++
		}
	}
	assert.Equal(t, []string{StageDetect, StageAgents, StageAggregate}, started)
	assert.Equal(t, []string{StageDetect, StageAgents, StageAggregate}, finished)
	assert.Equal(t, 4, agentEvents)
}

func TestRunSecurityOnly(t *testing.T) {
	p := testPlugin(t, securityAgentDoc, archAgentDoc)

	run, err := Run(context.Background(), Options{
		Plugin:       p,
		SecurityOnly: true,
		Root:         testRoot(t),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"test-security"}, run.AgentNames)
	assert.Equal(t, 1, run.Summary.Total)
	assert.NotContains(t, run.Rules, "ARCH-001")
}

func TestRunSecurityOnlyWithoutSecurityAgents(t *testing.T) {
	p := testPlugin(t, archAgentDoc)

	_, err := Run(context.Background(), Options{
		Plugin:       p,
		SecurityOnly: true,
		Root:         t.TempDir(),
	})
	assert.ErrorContains(t, err, "no security agents")
}

func TestRunUnknownAgent(t *testing.T) {
	p := testPlugin(t, securityAgentDoc)

	_, err := Run(context.Background(), Options{
		Plugin:     p,
		AgentNames: []string{"missing"},
		Root:       t.TempDir(),
	})
	assert.ErrorContains(t, err, "unknown name missing")
}

func TestRunSeverityFilter(t *testing.T) {
	p := testPlugin(t, securityAgentDoc, archAgentDoc)

	run, err := Run(context.Background(), Options{
		Plugin:      p,
		Root:        testRoot(t),
		MinSeverity: rule.SeverityCritical,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Summary.Total)
	assert.Equal(t, 1, run.Summary.Filtered)
}

func TestRunRequiresPlugin(t *testing.T) {
	_, err := Run(context.Background(), Options{Root: t.TempDir()})
	assert.ErrorContains(t, err, "plugin is required")
}

func TestRunNilEventSinkIsSafe(t *testing.T) {
	p := testPlugin(t, securityAgentDoc)
	_, err := Run(context.Background(), Options{Plugin: p, Root: testRoot(t)})
	require.NoError(t, err)
}
