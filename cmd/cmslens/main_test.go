package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrelworks/cmslens/internal/config"
	"github.com/kestrelworks/cmslens/internal/ignorefile"
	"github.com/kestrelworks/cmslens/internal/report"
	"github.com/kestrelworks/cmslens/internal/rule"
	"github.com/kestrelworks/cmslens/internal/scan"
)

func setTestEnv(t *testing.T, workspaceDir string) {
	t.Helper()
	var err error
	cfg, err = config.Load(workspaceDir)
	require.NoError(t, err)
	logger = zap.NewNop()
	t.Cleanup(func() {
		cfg = nil
		logger = nil
		pluginName = ""
		analyzeSeverity = ""
		analyzeSafeMode = false
		analyzeChangesOnly = false
	})
}

func sitecoreWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	csproj := `<PackageReference Include="Sitecore.Kernel" Version="10.3.0" />`
	require.NoError(t, os.WriteFile(filepath.Join(root, "Site.csproj"), []byte(csproj), 0o644))
	return root
}

func TestBuildAnalyzeOptionsDetectsPlugin(t *testing.T) {
	setTestEnv(t, sitecoreWorkspace(t))

	opts, err := buildAnalyzeOptions(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "sitecore", opts.Plugin.Name())
	assert.Empty(t, opts.AgentNames)
}

func TestBuildAnalyzeOptionsSingleAgent(t *testing.T) {
	setTestEnv(t, sitecoreWorkspace(t))

	opts, err := buildAnalyzeOptions(context.Background(), []string{"sitecore-security"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sitecore-security"}, opts.AgentNames)

	opts, err = buildAnalyzeOptions(context.Background(), []string{"all"})
	require.NoError(t, err)
	assert.Empty(t, opts.AgentNames)
}

func TestBuildAnalyzeOptionsSeverity(t *testing.T) {
	setTestEnv(t, sitecoreWorkspace(t))

	analyzeSeverity = "critical"
	opts, err := buildAnalyzeOptions(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, rule.SeverityCritical, opts.MinSeverity)

	analyzeSeverity = "bogus"
	_, err = buildAnalyzeOptions(context.Background(), nil)
	assert.Error(t, err)
}

func TestBuildAnalyzeOptionsSafeMode(t *testing.T) {
	setTestEnv(t, sitecoreWorkspace(t))

	analyzeSafeMode = true
	opts, err := buildAnalyzeOptions(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, scan.SafeModeMaxFiles, opts.MaxFiles)
}

func TestBuildAnalyzeOptionsUnknownWorkspace(t *testing.T) {
	setTestEnv(t, t.TempDir())

	_, err := buildAnalyzeOptions(context.Background(), nil)
	assert.ErrorContains(t, err, "could not detect a CMS platform")
}

func TestResolvePluginExplicitName(t *testing.T) {
	setTestEnv(t, t.TempDir())
	pluginName = "umbraco"

	set, err := loadPlugins()
	require.NoError(t, err)
	p, err := resolvePlugin(set)
	require.NoError(t, err)
	assert.Equal(t, "umbraco", p.Name())
}

func TestBuildAnalyzeOptionsIgnoreFileError(t *testing.T) {
	root := sitecoreWorkspace(t)
	// A directory at the ignore file's path makes the load fail without
	// relying on file permissions.
	require.NoError(t, os.Mkdir(filepath.Join(root, ignorefile.FileName), 0o755))
	setTestEnv(t, root)

	_, err := buildAnalyzeOptions(context.Background(), nil)
	assert.ErrorContains(t, err, "ignorefile")
}

func TestRecordRunSafeModeSkipsTracking(t *testing.T) {
	setTestEnv(t, t.TempDir())
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
	}))
	defer srv.Close()
	cfg.Project.Tracking.WebhookURL = srv.URL

	run := report.Run{ID: "run-1", Plugin: "sitecore", StartedAt: time.Now()}
	recordRun(context.Background(), "analyze", run, true)
	assert.Equal(t, int32(0), posts.Load(), "safe-mode run must not post a tracking event")

	recordRun(context.Background(), "analyze", run, false)
	assert.Equal(t, int32(1), posts.Load())
}

func TestIgnoreWatchEvent(t *testing.T) {
	cases := []struct {
		path    string
		ignored bool
	}{
		{"/repo/src/Controller.cs", false},
		{"/repo/.cmslens/logs/cmslens.log", true},
		{"/repo/docs/sitecore-analysis-2026-08-31.md", true},
	}
	for _, tc := range cases {
		event := fsnotify.Event{Name: tc.path, Op: fsnotify.Write}
		assert.Equal(t, tc.ignored, ignoreWatchEvent(event), tc.path)
	}
}
