// Package config handles the .cmslens workspace directory and runtime
// configuration. Every analyzed project gets a .cmslens/ folder holding
// logs, state (baselines, run history), and an editable config.yaml.
// Environment variables override file settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// DotDir is the name of the directory created in each analyzed project.
	DotDir = ".cmslens"

	defaultOutputDir = "docs"
)

const defaultConfigYAML = `# cmslens project configuration
version: 1

# Default plugin used when --plugin is not given. Leave empty to rely on
# platform detection.
default_plugin: ""

# Extra directories searched for plugins, in addition to the bundled ones.
plugin_dirs: []

analyze:
  # Hard cap on scanned files. 0 means no limit.
  max_files: 0
  # Minimum severity included in reports: info, warning, or critical.
  severity: info

report:
  output_dir: docs

tracking:
  # POST a small usage event here after each run. Empty disables tracking.
  webhook_url: ""
  enabled: true
`

// AnalyzeConfig captures analyze defaults from config.yaml.
type AnalyzeConfig struct {
	MaxFiles int    `yaml:"max_files"`
	Severity string `yaml:"severity"`
}

// ReportConfig captures report preferences.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// TrackingConfig captures the optional usage webhook.
type TrackingConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Enabled    bool   `yaml:"enabled"`
}

// ProjectConfig models .cmslens/config.yaml.
type ProjectConfig struct {
	Version       int            `yaml:"version"`
	DefaultPlugin string         `yaml:"default_plugin"`
	PluginDirs    []string       `yaml:"plugin_dirs"`
	Analyze       AnalyzeConfig  `yaml:"analyze"`
	Report        ReportConfig   `yaml:"report"`
	Tracking      TrackingConfig `yaml:"tracking"`
}

// EnvOverrides are read from the process environment and win over
// config.yaml values.
type EnvOverrides struct {
	NoTracking bool     `env:"CLAUDE_PLUGIN_NO_TRACKING"`
	WebhookURL string   `env:"CMSLENS_WEBHOOK_URL"`
	PluginDirs []string `env:"CMSLENS_PLUGIN_PATH" envSeparator:":"`
}

// Config holds the resolved runtime configuration.
type Config struct {
	// WorkspaceDir is the analyzed project root.
	WorkspaceDir string
	// StateDir is WorkspaceDir/.cmslens.
	StateDir string

	Project ProjectConfig
	Env     EnvOverrides
}

// InitStateDir creates the .cmslens directory structure and a default
// config.yaml when none exists.
//
// Structure created:
//
//	.cmslens/
//	├── logs/    <- analyzer logs
//	├── state/   <- baselines, history.db
//	└── config.yaml
func InitStateDir(workspaceDir string) error {
	stateDir := filepath.Join(workspaceDir, DotDir)
	for _, dir := range []string{
		filepath.Join(stateDir, "logs"),
		filepath.Join(stateDir, "state"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return ensureConfigFile(filepath.Join(stateDir, "config.yaml"))
}

// Load reads the project configuration and applies environment overrides.
// A missing config.yaml yields defaults rather than an error so read-only
// commands work before setup has run.
func Load(workspaceDir string) (*Config, error) {
	cfg := &Config{
		WorkspaceDir: workspaceDir,
		StateDir:     filepath.Join(workspaceDir, DotDir),
	}
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &cfg.Project); err != nil {
		return nil, fmt.Errorf("config: parse defaults: %w", err)
	}

	content, err := os.ReadFile(filepath.Join(cfg.StateDir, "config.yaml"))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &cfg.Project); err != nil {
			return nil, fmt.Errorf("config: parse config.yaml: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// defaults stand
	default:
		return nil, fmt.Errorf("config: read config.yaml: %w", err)
	}

	if err := env.Parse(&cfg.Env); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// TrackingEnabled resolves the tracking switches: the kill-switch env var
// wins, then config.yaml, and tracking is off entirely without a URL.
func (c *Config) TrackingEnabled() bool {
	if c.Env.NoTracking {
		return false
	}
	if !c.Project.Tracking.Enabled {
		return false
	}
	return c.WebhookURL() != ""
}

// WebhookURL returns the env override or the configured URL.
func (c *Config) WebhookURL() string {
	if c.Env.WebhookURL != "" {
		return c.Env.WebhookURL
	}
	return c.Project.Tracking.WebhookURL
}

// PluginDirs merges configured and env-provided plugin directories.
func (c *Config) PluginDirs() []string {
	return append(append([]string{}, c.Project.PluginDirs...), c.Env.PluginDirs...)
}

// OutputDir returns the report directory, defaulting to docs.
func (c *Config) OutputDir() string {
	if c.Project.Report.OutputDir != "" {
		return c.Project.Report.OutputDir
	}
	return defaultOutputDir
}

// HistoryPath returns the run-history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StateDir, "state", "history.db")
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write default config: %w", err)
	}
	return nil
}
