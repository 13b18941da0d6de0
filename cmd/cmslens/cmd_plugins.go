package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/cmslens/internal/plugin"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Inspect available plugins",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bundled and external plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadPlugins()
		if err != nil {
			return err
		}
		market, err := plugin.BuiltinMarketplace()
		if err != nil {
			return err
		}
		fmt.Printf("%s marketplace\n\n", market.Name)
		registered := map[string]string{}
		for _, entry := range market.Plugins {
			registered[entry.Name] = entry.Version
		}
		for _, p := range set.All() {
			fmt.Printf("%-12s %-8s %s\n", p.Name(), p.Manifest.Version, p.Manifest.Description)
			fmt.Printf("             source: %s, agents: %s, skills: %d\n",
				p.Source, strings.Join(p.Agents.Names(), ", "), len(p.Skills))
			if v, ok := registered[p.Name()]; ok && v != p.Manifest.Version {
				fmt.Printf("             marketplace lists %s\n", v)
			}
		}
		return nil
	},
}

var pluginsValidateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Validate a plugin directory",
	Long: `Loads the plugin at the given directory, checking the manifest schema,
that every referenced file exists, and that all agent rules compile.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		p, err := plugin.Load(os.DirFS(dir), dir)
		if err != nil {
			return err
		}
		rules := 0
		for _, a := range p.Agents.All() {
			rules += len(a.CompiledRules())
		}
		fmt.Printf("%s %s is valid: %d agent(s), %d rule(s), %d skill(s)\n",
			p.Name(), p.Manifest.Version, len(p.Agents.Names()), rules, len(p.Skills))
		return nil
	},
}

func init() {
	pluginsCmd.AddCommand(pluginsListCmd, pluginsValidateCmd)
	rootCmd.AddCommand(pluginsCmd)
}
