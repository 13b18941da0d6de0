package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/cmslens/internal/enhance"
	"github.com/kestrelworks/cmslens/internal/ignorefile"
	"github.com/kestrelworks/cmslens/internal/pipeline"
)

var (
	enhanceOutput          string
	enhanceDryRun          bool
	enhanceIncludeExamples bool
	enhanceUpdate          bool
	enhanceForce           bool
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Generate an improvement plan from the current findings",
	Long: `Analyzes the workspace and writes docs/{plugin}-enhancements-{date}.md:
a prioritized list of recommended changes, grouped by rule, with the
plugin's remediation guidance and optionally code examples from its skill
documents.`,
	RunE: runEnhance,
}

func init() {
	enhanceCmd.Flags().StringVarP(&enhanceOutput, "output", "o", "", "document path (default: docs/{plugin}-enhancements-{date}.md)")
	enhanceCmd.Flags().BoolVar(&enhanceDryRun, "dry-run", false, "print the plan without writing the document")
	enhanceCmd.Flags().BoolVar(&enhanceIncludeExamples, "include-examples", false, "inline code examples from skill documents")
	enhanceCmd.Flags().BoolVar(&enhanceUpdate, "update", false, "refresh an existing document generated by this tool")
	enhanceCmd.Flags().BoolVar(&enhanceForce, "force", false, "overwrite the target file regardless of origin")
	rootCmd.AddCommand(enhanceCmd)
}

func runEnhance(cmd *cobra.Command, args []string) error {
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
		Plugin:   p,
		Root:     cfg.WorkspaceDir,
		Ignore:   matcher,
		MaxFiles: cfg.Project.Analyze.MaxFiles,
		Logger:   logger,
	}

	run, err := executeRun(ctx, opts, !enhanceDryRun)
	if err != nil {
		return err
	}

	path := enhanceOutput
	if path == "" {
		path = enhance.DefaultPath(cfg.WorkspaceDir, run.Plugin, run.StartedAt)
	}
	if enhanceDryRun {
		fmt.Print(enhance.Plan(run, path))
		return nil
	}

	doc, err := enhance.Generate(run, p, enhance.Options{IncludeExamples: enhanceIncludeExamples})
	if err != nil {
		return err
	}
	if err := enhance.Write(path, doc, enhance.WriteOptions{Update: enhanceUpdate, Force: enhanceForce}); err != nil {
		return err
	}
	fmt.Printf("Enhancement plan written to %s\n", path)

	recordRun(ctx, "enhance", run, false)
	return nil
}
