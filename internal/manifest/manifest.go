// Package manifest parses the plugin.json and marketplace.json files that
// describe a plugin bundle: its commands, agent documents, and skill
// documents. Manifests are read through a JSONC filter so hand-maintained
// files may carry comments and trailing commas.
package manifest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// KnownCommands is the command surface a manifest may declare.
var KnownCommands = []string{"analyze", "enhance", "security-scan", "setup"}

// Plugin models plugin.json.
type Plugin struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Commands    []string `json:"commands"`
	Agents      []string `json:"agents"`
	Skills      []string `json:"skills"`
}

// ParsePlugin decodes and validates a plugin manifest.
func ParsePlugin(content []byte) (Plugin, error) {
	var p Plugin
	if err := json.Unmarshal(jsonc.ToJSON(content), &p); err != nil {
		return Plugin{}, fmt.Errorf("manifest: parse plugin.json: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Plugin{}, err
	}
	return p, nil
}

// Validate enforces the schema invariants.
func (p Plugin) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if strings.TrimSpace(p.Version) == "" {
		return fmt.Errorf("manifest %s: version is required", p.Name)
	}
	if len(p.Agents) == 0 {
		return fmt.Errorf("manifest %s: at least one agent is required", p.Name)
	}
	for _, cmd := range p.Commands {
		if !knownCommand(cmd) {
			return fmt.Errorf("manifest %s: unknown command %q", p.Name, cmd)
		}
	}
	if err := noDuplicates("agents", p.Agents); err != nil {
		return fmt.Errorf("manifest %s: %w", p.Name, err)
	}
	if err := noDuplicates("skills", p.Skills); err != nil {
		return fmt.Errorf("manifest %s: %w", p.Name, err)
	}
	return nil
}

// CheckFiles verifies that every agent and skill document the manifest names
// exists inside the plugin directory.
func (p Plugin) CheckFiles(fsys fs.FS) error {
	for _, rel := range append(append([]string{}, p.Agents...), p.Skills...) {
		clean := path.Clean(rel)
		if strings.HasPrefix(clean, "..") {
			return fmt.Errorf("manifest %s: path %q escapes the plugin directory", p.Name, rel)
		}
		if _, err := fs.Stat(fsys, clean); err != nil {
			return fmt.Errorf("manifest %s: missing file %s: %w", p.Name, rel, err)
		}
	}
	return nil
}

// Marketplace models marketplace.json, the registry of installable plugins.
type Marketplace struct {
	Name    string             `json:"name"`
	Owner   string             `json:"owner,omitempty"`
	Plugins []MarketplaceEntry `json:"plugins"`
}

// MarketplaceEntry is one registered plugin.
type MarketplaceEntry struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// ParseMarketplace decodes and validates a marketplace manifest.
func ParseMarketplace(content []byte) (Marketplace, error) {
	var m Marketplace
	if err := json.Unmarshal(jsonc.ToJSON(content), &m); err != nil {
		return Marketplace{}, fmt.Errorf("manifest: parse marketplace.json: %w", err)
	}
	if strings.TrimSpace(m.Name) == "" {
		return Marketplace{}, fmt.Errorf("manifest: marketplace name is required")
	}
	seen := make(map[string]struct{}, len(m.Plugins))
	for i, entry := range m.Plugins {
		if strings.TrimSpace(entry.Name) == "" {
			return Marketplace{}, fmt.Errorf("manifest: marketplace plugin[%d]: name is required", i)
		}
		if strings.TrimSpace(entry.Source) == "" {
			return Marketplace{}, fmt.Errorf("manifest: marketplace plugin %s: source is required", entry.Name)
		}
		if _, dup := seen[entry.Name]; dup {
			return Marketplace{}, fmt.Errorf("manifest: marketplace duplicate plugin %s", entry.Name)
		}
		seen[entry.Name] = struct{}{}
	}
	return m, nil
}

// PluginNames returns the registered plugin names sorted.
func (m Marketplace) PluginNames() []string {
	names := make([]string, 0, len(m.Plugins))
	for _, entry := range m.Plugins {
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	return names
}

func knownCommand(name string) bool {
	for _, known := range KnownCommands {
		if name == known {
			return true
		}
	}
	return false
}

func noDuplicates(label string, values []string) error {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			return fmt.Errorf("%s: duplicate entry %s", label, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}
