package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/kestrelworks/cmslens/internal/detect"
	"github.com/kestrelworks/cmslens/internal/history"
	"github.com/kestrelworks/cmslens/internal/pipeline"
	"github.com/kestrelworks/cmslens/internal/plugin"
	"github.com/kestrelworks/cmslens/internal/report"
	"github.com/kestrelworks/cmslens/internal/tracking"
	"github.com/kestrelworks/cmslens/internal/tui"
)

// loadPlugins assembles the bundled plugins plus any external plugin
// directories from config or CMSLENS_PLUGIN_PATH.
func loadPlugins() (*plugin.Set, error) {
	set, err := plugin.LoadBuiltin()
	if err != nil {
		return nil, err
	}
	for _, dir := range cfg.PluginDirs() {
		if err := set.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// resolvePlugin picks the plugin for this run: the --plugin flag, then the
// configured default, then the detected platform name.
func resolvePlugin(set *plugin.Set) (*plugin.Plugin, error) {
	name := pluginName
	if name == "" {
		name = cfg.Project.DefaultPlugin
	}
	if name == "" {
		result, err := detect.Detect(os.DirFS(cfg.WorkspaceDir))
		if err != nil {
			return nil, err
		}
		if result.Platform == detect.PlatformUnknown {
			return nil, fmt.Errorf("could not detect a CMS platform in %s; pass --plugin (available: %v)",
				cfg.WorkspaceDir, set.Names())
		}
		name = string(result.Platform)
		logger.Info("plugin selected by detection",
			zap.String("plugin", name),
			zap.Float64("confidence", result.Confidence))
	}
	return set.Get(name)
}

// executeRun drives one pipeline run. On a TTY it shows the live progress
// UI; otherwise the run logs plainly.
func executeRun(ctx context.Context, opts pipeline.Options, interactive bool) (report.Run, error) {
	if !interactive || !isatty.IsTerminal(os.Stdout.Fd()) {
		return pipeline.Run(ctx, opts)
	}

	events := make(chan pipeline.Event, 256)
	opts.Events = events
	prog := tea.NewProgram(tui.NewProgress(opts.Plugin.Name()), tea.WithContext(ctx))

	var (
		run    report.Run
		runErr error
	)
	go func() {
		run, runErr = pipeline.Run(ctx, opts)
		close(events)
		prog.Send(tui.DoneMsg{Err: runErr})
	}()
	go func() {
		for e := range events {
			prog.Send(tui.EventMsg{Event: e})
		}
	}()
	if _, err := prog.Run(); err != nil {
		return report.Run{}, fmt.Errorf("progress ui: %w", err)
	}
	return run, runErr
}

// recordRun persists the run to history and fires the optional usage
// webhook. Both are best-effort: a full analysis never fails on either.
// Safe-mode runs never post the webhook.
func recordRun(ctx context.Context, command string, run report.Run, safeMode bool) {
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logger.Debug("history unavailable", zap.Error(err))
	} else {
		defer store.Close()
		err := store.Record(ctx, history.Entry{
			ID:        run.ID,
			Command:   command,
			Plugin:    run.Plugin,
			Platform:  string(run.Platform),
			Score:     run.Summary.Score,
			Grade:     run.Summary.Grade,
			Critical:  run.Summary.Critical,
			Warning:   run.Summary.Warning,
			Info:      run.Summary.Info,
			Files:     run.Stats.FilesScanned,
			Duration:  run.Duration,
			StartedAt: run.StartedAt,
		})
		if err != nil {
			logger.Debug("history record failed", zap.Error(err))
		}
	}

	if safeMode || !cfg.TrackingEnabled() {
		return
	}
	done := tracking.New(cfg.WebhookURL(), logger).Send(tracking.Event{
		Command:    command,
		Plugin:     run.Plugin,
		Platform:   string(run.Platform),
		Findings:   run.Summary.Total,
		Score:      run.Summary.Score,
		DurationMS: run.Duration.Milliseconds(),
	})
	select {
	case <-done:
	case <-ctx.Done():
	}
}
