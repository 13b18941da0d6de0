// Package plugin assembles complete plugin bundles: a plugin.json manifest
// plus the agent and skill documents it names. Bundles come from the
// embedded assets or from external directories; external bundles with the
// same name override bundled ones so users can fork a plugin in place.
package plugin

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/kestrelworks/cmslens/internal/agent"
	"github.com/kestrelworks/cmslens/internal/manifest"
	"github.com/kestrelworks/cmslens/internal/skill"
)

// ManifestFileName is the manifest file expected in each plugin directory.
const ManifestFileName = "plugin.json"

// Plugin is a fully loaded bundle.
type Plugin struct {
	Manifest manifest.Plugin
	Agents   *agent.Registry
	Skills   []*skill.Skill

	// Source describes where the bundle was loaded from ("builtin" or a
	// directory path), for diagnostics and plugins list output.
	Source string
}

// Name returns the manifest name.
func (p *Plugin) Name() string {
	return p.Manifest.Name
}

// Load reads one bundle from fsys.
func Load(fsys fs.FS, source string) (*Plugin, error) {
	raw, err := fs.ReadFile(fsys, ManifestFileName)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: read manifest: %w", source, err)
	}
	m, err := manifest.ParsePlugin(raw)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", source, err)
	}
	if err := m.CheckFiles(fsys); err != nil {
		return nil, fmt.Errorf("plugin %s: %w", source, err)
	}

	p := &Plugin{Manifest: m, Agents: agent.NewRegistry(), Source: source}
	for _, rel := range m.Agents {
		content, err := fs.ReadFile(fsys, rel)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: read agent %s: %w", m.Name, rel, err)
		}
		a, err := agent.Parse(rel, content)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", m.Name, err)
		}
		if err := p.Agents.Register(a); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", m.Name, err)
		}
	}
	for _, rel := range m.Skills {
		content, err := fs.ReadFile(fsys, rel)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: read skill %s: %w", m.Name, rel, err)
		}
		s, err := skill.Parse(rel, content)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", m.Name, err)
		}
		p.Skills = append(p.Skills, s)
	}
	return p, nil
}

// Set indexes loaded plugins by name.
type Set struct {
	plugins map[string]*Plugin
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{plugins: map[string]*Plugin{}}
}

// Add installs a plugin. Bundled plugins reject duplicates; external loads
// pass override to replace an earlier bundle of the same name.
func (s *Set) Add(p *Plugin, override bool) error {
	if p == nil || p.Name() == "" {
		return fmt.Errorf("plugin: invalid bundle")
	}
	if existing, exists := s.plugins[p.Name()]; exists && !override {
		return fmt.Errorf("plugin: duplicate name %s (%s and %s)", p.Name(), existing.Source, p.Source)
	}
	s.plugins[p.Name()] = p
	return nil
}

// Get returns the named plugin.
func (s *Set) Get(name string) (*Plugin, error) {
	p, ok := s.plugins[name]
	if !ok {
		return nil, fmt.Errorf("plugin: unknown plugin %s (available: %v)", name, s.Names())
	}
	return p, nil
}

// Names returns the sorted plugin names.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.plugins))
	for name := range s.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every plugin in name order.
func (s *Set) All() []*Plugin {
	var out []*Plugin
	for _, name := range s.Names() {
		out = append(out, s.plugins[name])
	}
	return out
}

// LoadDir scans dir for subdirectories carrying a plugin.json and loads
// each as an override. A missing dir is not an error.
func (s *Set) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("plugin: read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(sub, ManifestFileName)); err != nil {
			continue
		}
		p, err := Load(os.DirFS(sub), sub)
		if err != nil {
			return err
		}
		if err := s.Add(p, true); err != nil {
			return err
		}
	}
	return nil
}
