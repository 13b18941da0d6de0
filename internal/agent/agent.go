// Package agent loads category agents: markdown documents whose YAML
// frontmatter declares a group of detection rules for one plugin category
// (architecture, security, performance, templates). The markdown body is
// free-form guidance that survives into generated reports.
package agent

import (
	"fmt"
	"strings"

	"github.com/kestrelworks/cmslens/internal/docfmt"
	"github.com/kestrelworks/cmslens/internal/rule"
)

// Agent is one parsed agent document.
type Agent struct {
	Name        string      `yaml:"name"`
	Plugin      string      `yaml:"plugin"`
	Category    string      `yaml:"category"`
	Description string      `yaml:"description,omitempty"`
	Rules       []rule.Rule `yaml:"rules"`

	// Body is the markdown guidance below the frontmatter.
	Body string `yaml:"-"`
	// Path records where the document was loaded from, for diagnostics.
	Path string `yaml:"-"`

	compiled []rule.Compiled
}

// Parse decodes and validates a single agent document.
func Parse(path string, content []byte) (*Agent, error) {
	var a Agent
	body, err := docfmt.Parse(content, &a)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", path, err)
	}
	a.Body = string(body)
	a.Path = path
	if err := a.compile(); err != nil {
		return nil, fmt.Errorf("agent %s: %w", path, err)
	}
	return &a, nil
}

func (a *Agent) compile() error {
	a.Name = strings.TrimSpace(a.Name)
	a.Plugin = strings.TrimSpace(a.Plugin)
	a.Category = strings.TrimSpace(a.Category)
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if a.Category == "" {
		return fmt.Errorf("category is required for %s", a.Name)
	}
	if len(a.Rules) == 0 {
		return fmt.Errorf("at least one rule is required for %s", a.Name)
	}
	seen := make(map[string]struct{}, len(a.Rules))
	for _, r := range a.Rules {
		compiled, err := r.Compile(a.Category)
		if err != nil {
			return err
		}
		if _, dup := seen[compiled.Code]; dup {
			return fmt.Errorf("duplicate rule code %s", compiled.Code)
		}
		seen[compiled.Code] = struct{}{}
		a.compiled = append(a.compiled, compiled)
	}
	return nil
}

// CompiledRules returns the agent's rules ready for matching.
func (a *Agent) CompiledRules() []rule.Compiled {
	return a.compiled
}

// SecurityFocused reports whether this agent belongs to the security-scan
// subset.
func (a *Agent) SecurityFocused() bool {
	return strings.EqualFold(a.Category, "security")
}
