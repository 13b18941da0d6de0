package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kestrelworks/cmslens/internal/baseline"
	"github.com/kestrelworks/cmslens/internal/config"
	"github.com/kestrelworks/cmslens/internal/ignorefile"
	"github.com/kestrelworks/cmslens/internal/pipeline"
	"github.com/kestrelworks/cmslens/internal/report"
	"github.com/kestrelworks/cmslens/internal/rule"
	"github.com/kestrelworks/cmslens/internal/scan"
)

var (
	analyzeOutput        string
	analyzeNoFile        bool
	analyzeSafeMode      bool
	analyzeSeverity      string
	analyzeBaseline      string
	analyzeWriteBaseline bool
	analyzeChangesOnly   bool
	analyzeWatch         bool
)

// watchDebounce coalesces filesystem event bursts into one re-run.
const watchDebounce = 500 * time.Millisecond

var analyzeCmd = &cobra.Command{
	Use:   "analyze [agent|all]",
	Short: "Run plugin agents against the workspace and write a scored report",
	Long: `Runs the selected plugin's agents against the workspace and writes a
markdown report to docs/{plugin}-analysis-{date}.md.

Pass an agent name to run a single agent, or "all" (the default) for every
agent in the plugin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "report path (default: docs/{plugin}-analysis-{date}.md)")
	analyzeCmd.Flags().BoolVar(&analyzeNoFile, "no-file", false, "print the report to stdout instead of writing a file")
	analyzeCmd.Flags().BoolVar(&analyzeSafeMode, "safe-mode", false, fmt.Sprintf("cap the scan at %d files", scan.SafeModeMaxFiles))
	analyzeCmd.Flags().StringVar(&analyzeSeverity, "severity", "", "minimum severity to report: info, warning, or critical")
	analyzeCmd.Flags().StringVar(&analyzeBaseline, "baseline", "", "baseline file of accepted findings to subtract")
	analyzeCmd.Flags().BoolVar(&analyzeWriteBaseline, "write-baseline", false, "accept the run's findings as the new baseline")
	analyzeCmd.Flags().BoolVar(&analyzeChangesOnly, "changes-only", false, "only scan files changed since the last git commit")
	analyzeCmd.Flags().BoolVar(&analyzeWatch, "watch", false, "re-run on file changes")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	opts, err := buildAnalyzeOptions(cmd.Context(), args)
	if err != nil {
		return err
	}
	if analyzeWatch {
		return watchAnalyze(cmd.Context(), opts)
	}
	return analyzeOnce(cmd.Context(), opts, !analyzeNoFile)
}

func buildAnalyzeOptions(ctx context.Context, args []string) (pipeline.Options, error) {
	set, err := loadPlugins()
	if err != nil {
		return pipeline.Options{}, err
	}
	p, err := resolvePlugin(set)
	if err != nil {
		return pipeline.Options{}, err
	}

	opts := pipeline.Options{
		Plugin: p,
		Root:   cfg.WorkspaceDir,
		Logger: logger,
	}
	if len(args) == 1 && args[0] != "all" {
		opts.AgentNames = []string{args[0]}
	}

	matcher, err := ignorefile.Load(cfg.WorkspaceDir)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts.Ignore = matcher

	severityName := analyzeSeverity
	if severityName == "" {
		severityName = cfg.Project.Analyze.Severity
	}
	if severityName != "" {
		severity, err := rule.ParseSeverity(severityName)
		if err != nil {
			return pipeline.Options{}, err
		}
		opts.MinSeverity = severity
	}

	opts.MaxFiles = cfg.Project.Analyze.MaxFiles
	if analyzeSafeMode {
		opts.MaxFiles = scan.SafeModeMaxFiles
	}

	if analyzeBaseline != "" && !analyzeWriteBaseline {
		b, err := baseline.Load(analyzeBaseline)
		if err != nil {
			return pipeline.Options{}, err
		}
		opts.Baseline = b
	}

	if analyzeChangesOnly {
		changed, err := scan.ChangedFiles(ctx, cfg.WorkspaceDir)
		if err != nil {
			return pipeline.Options{}, err
		}
		if len(changed) == 0 {
			return pipeline.Options{}, fmt.Errorf("no changed files to analyze")
		}
		opts.Only = changed
	}
	return opts, nil
}

func analyzeOnce(ctx context.Context, opts pipeline.Options, interactive bool) error {
	run, err := executeRun(ctx, opts, interactive)
	if err != nil {
		return err
	}

	content, err := report.Render(run)
	if err != nil {
		return err
	}
	if analyzeNoFile {
		fmt.Print(string(content))
	} else {
		path := analyzeOutput
		if path == "" {
			path = report.DefaultPath(cfg.WorkspaceDir, run.Plugin, run.StartedAt)
			if dir := cfg.OutputDir(); dir != "docs" {
				path = filepath.Join(cfg.WorkspaceDir, dir, filepath.Base(path))
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Println(report.TerminalSummary(run))
		fmt.Printf("Report written to %s\n", path)
	}

	if analyzeWriteBaseline {
		path := analyzeBaseline
		if path == "" {
			path = filepath.Join(cfg.StateDir, "state", run.Plugin+"-baseline.json")
		}
		b := baseline.New(run.Plugin, run.Summary.Findings, run.StartedAt)
		if err := b.Save(path); err != nil {
			return err
		}
		fmt.Printf("Baseline with %d finding(s) written to %s\n", run.Summary.Total, path)
	}

	recordRun(ctx, "analyze", run, analyzeSafeMode)
	return nil
}

// watchAnalyze re-runs the analysis whenever the workspace changes, with
// debouncing so save bursts trigger a single run.
func watchAnalyze(ctx context.Context, opts pipeline.Options) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()
	if err := addWatchDirs(watcher, cfg.WorkspaceDir, opts.Ignore); err != nil {
		return err
	}

	runOnce := func() {
		if err := analyzeOnce(ctx, opts, false); err != nil {
			fmt.Fprintf(os.Stderr, "cmslens: %v\n", err)
		}
	}
	runOnce()
	fmt.Println("Watching for changes (ctrl-c to stop)...")

	var debounce *time.Timer
	rerun := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-rerun:
			runOnce()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignoreWatchEvent(event) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string, ignore *ignorefile.Matcher) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel != "." {
			if strings.HasPrefix(d.Name(), ".") || (ignore != nil && ignore.Match(rel)) {
				return fs.SkipDir
			}
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// ignoreWatchEvent filters events from generated output so a written report
// does not retrigger the run.
func ignoreWatchEvent(event fsnotify.Event) bool {
	name := filepath.ToSlash(event.Name)
	return strings.Contains(name, "/"+config.DotDir+"/") ||
		strings.Contains(name, "/docs/") ||
		strings.HasSuffix(name, ".log")
}
