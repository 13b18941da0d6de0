package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/cmslens/internal/config"
	"github.com/kestrelworks/cmslens/internal/detect"
	"github.com/kestrelworks/cmslens/internal/ignorefile"
	"github.com/kestrelworks/cmslens/internal/logging"
)

var setupGenerateIgnore bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize the .cmslens directory for this project",
	Long: `Creates the .cmslens directory (logs, state, config.yaml) in the
workspace and reports the detected CMS platform. Run once per project.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&setupGenerateIgnore, "generate-ignore", false, "write a platform-specific "+ignorefile.FileName)
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	if err := config.InitStateDir(cfg.WorkspaceDir); err != nil {
		return err
	}
	// Reopen with the file sink now that the state dir exists.
	if fileLogger, err := logging.New(cfg.StateDir, verbose); err == nil {
		logger = fileLogger
	}
	fmt.Printf("Initialized %s\n", filepath.Join(cfg.WorkspaceDir, config.DotDir))

	result, err := detect.Detect(os.DirFS(cfg.WorkspaceDir))
	if err != nil {
		return err
	}
	if result.Platform == detect.PlatformUnknown {
		fmt.Println("No CMS platform detected; set default_plugin in config.yaml or pass --plugin.")
	} else {
		fmt.Printf("Detected platform: %s (%.0f%% confidence)\n", result.Platform, result.Confidence*100)
		for _, ev := range result.Evidence {
			fmt.Printf("  - %s: %s\n", ev.Path, ev.Marker)
		}
	}

	if setupGenerateIgnore {
		target := filepath.Join(cfg.WorkspaceDir, ignorefile.FileName)
		if err := ignorefile.Write(target, result.Platform); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", target)
	}
	return nil
}
