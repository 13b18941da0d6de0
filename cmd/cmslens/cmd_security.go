package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/cmslens/internal/ignorefile"
	"github.com/kestrelworks/cmslens/internal/pipeline"
	"github.com/kestrelworks/cmslens/internal/report"
)

var securityPreview bool

var securityScanCmd = &cobra.Command{
	Use:   "security-scan",
	Short: "Run only the plugin's security agents",
	Long: `Runs the security-category agents of the selected plugin. The scan is
scoped the same way as a full analyze; only the agent set differs.`,
	RunE: runSecurityScan,
}

func init() {
	securityScanCmd.Flags().BoolVar(&securityPreview, "preview", false, "render the report in the terminal instead of writing a file")
	rootCmd.AddCommand(securityScanCmd)
}

func runSecurityScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	set, err := loadPlugins()
	if err != nil {
		return err
	}
	p, err := resolvePlugin(set)
	if err != nil {
		return err
	}

	matcher, err := ignorefile.Load(cfg.WorkspaceDir)
	if err != nil {
		return err
	}
	opts := pipeline.Options{
		Plugin:       p,
		SecurityOnly: true,
		Root:         cfg.WorkspaceDir,
		Ignore:       matcher,
		MaxFiles:     cfg.Project.Analyze.MaxFiles,
		Logger:       logger,
	}

	run, err := executeRun(ctx, opts, !securityPreview)
	if err != nil {
		return err
	}
	content, err := report.Render(run)
	if err != nil {
		return err
	}

	if securityPreview {
		rendered, err := report.Preview(content, 0)
		if err != nil {
			return err
		}
		fmt.Print(rendered)
	} else {
		path := report.DefaultPath(cfg.WorkspaceDir, run.Plugin+"-security", run.StartedAt)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Println(report.TerminalSummary(run))
		fmt.Printf("Report written to %s\n", path)
	}

	recordRun(ctx, "security-scan", run, false)
	return nil
}
