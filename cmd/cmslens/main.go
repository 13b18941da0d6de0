package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kestrelworks/cmslens/internal/config"
	"github.com/kestrelworks/cmslens/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	pluginName string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cmslens",
	Short: "Static code review for Sitecore, Umbraco, and Optimizely codebases",
	Long: `cmslens analyzes CMS solution codebases with platform-specific rule
plugins and produces scored markdown reports.

Each plugin bundles category agents (architecture, security, performance,
templates) whose rules are matched against your source tree. Run
"cmslens setup" once per project, then "cmslens analyze".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
		}
		workspace, err = filepath.Abs(workspace)
		if err != nil {
			return fmt.Errorf("resolve workspace path: %w", err)
		}
		cfg, err = config.Load(workspace)
		if err != nil {
			return err
		}
		logger, err = buildLogger()
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// buildLogger attaches the file sink only once setup has created the state
// directory, so read-only commands do not litter unvisited projects.
func buildLogger() (*zap.Logger, error) {
	if _, err := os.Stat(cfg.StateDir); err == nil {
		return logging.New(cfg.StateDir, verbose)
	}
	if verbose {
		return zap.NewDevelopment()
	}
	return logging.Nop(), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "project root to analyze (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console logging")
	rootCmd.PersistentFlags().StringVar(&pluginName, "plugin", "", "plugin to run (default: config, then platform detection)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cmslens: %v\n", err)
		os.Exit(1)
	}
}
