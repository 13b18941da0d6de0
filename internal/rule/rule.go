// Package rule models detection rules and runs them against file contents.
// A rule pairs an issue code (ARCH-001, SEC-003) with a severity and one or
// more RE2 patterns scoped to file globs; the engine in match.go turns rule
// hits into findings.
package rule

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// codePattern constrains issue codes to the CATEGORY-NNN shape used in
// report tables.
var codePattern = regexp.MustCompile(`^[A-Z]{2,6}-\d{3}$`)

// Rule describes one detection heuristic as declared in an agent document.
type Rule struct {
	Code        string   `yaml:"code"`
	Title       string   `yaml:"title"`
	Severity    Severity `yaml:"severity"`
	Description string   `yaml:"description,omitempty"`
	Remediation string   `yaml:"remediation,omitempty"`
	Globs       []string `yaml:"globs,omitempty"`
	Patterns    []string `yaml:"patterns"`
	NotPatterns []string `yaml:"not_patterns,omitempty"`
}

// Normalized returns a trimmed copy of the rule.
func (r Rule) Normalized() Rule {
	clone := Rule{
		Code:        strings.TrimSpace(r.Code),
		Title:       strings.TrimSpace(r.Title),
		Severity:    r.Severity,
		Description: strings.TrimSpace(r.Description),
		Remediation: strings.TrimSpace(r.Remediation),
	}
	clone.Globs = trimAll(r.Globs)
	clone.Patterns = trimAll(r.Patterns)
	clone.NotPatterns = trimAll(r.NotPatterns)
	return clone
}

// Validate ensures the rule is well-formed without compiling it.
func (r Rule) Validate() error {
	normalized := r.Normalized()
	if normalized.Code == "" {
		return fmt.Errorf("rule: code is required")
	}
	if !codePattern.MatchString(normalized.Code) {
		return fmt.Errorf("rule %s: code must match CATEGORY-NNN", normalized.Code)
	}
	if normalized.Title == "" {
		return fmt.Errorf("rule %s: title is required", normalized.Code)
	}
	if !normalized.Severity.Valid() {
		return fmt.Errorf("rule %s: severity is required", normalized.Code)
	}
	if len(normalized.Patterns) == 0 {
		return fmt.Errorf("rule %s: at least one pattern is required", normalized.Code)
	}
	return nil
}

// Compiled is a rule with its patterns compiled and ready to match.
type Compiled struct {
	Rule
	Category string

	patterns []*regexp.Regexp
	excludes []*regexp.Regexp
}

// Compile validates the rule and compiles its patterns. Category is the
// owning agent's category and is stamped onto findings.
func (r Rule) Compile(category string) (Compiled, error) {
	if err := r.Validate(); err != nil {
		return Compiled{}, err
	}
	normalized := r.Normalized()
	compiled := Compiled{Rule: normalized, Category: strings.TrimSpace(category)}
	for _, pattern := range normalized.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Compiled{}, fmt.Errorf("rule %s: pattern %q: %w", normalized.Code, pattern, err)
		}
		compiled.patterns = append(compiled.patterns, re)
	}
	for _, pattern := range normalized.NotPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Compiled{}, fmt.Errorf("rule %s: not_pattern %q: %w", normalized.Code, pattern, err)
		}
		compiled.excludes = append(compiled.excludes, re)
	}
	return compiled, nil
}

// AppliesTo reports whether the rule's globs cover the given relative path.
// A rule without globs applies to every file.
func (c Compiled) AppliesTo(relPath string) bool {
	if len(c.Globs) == 0 {
		return true
	}
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	for _, glob := range c.Globs {
		if matchGlob(glob, relPath) {
			return true
		}
	}
	return false
}

// matchGlob supports the two glob shapes agent documents use: a bare
// basename pattern like *.cs (matched against the file name regardless of
// directory) and a **/-prefixed pattern matched against the full path tail.
func matchGlob(glob, relPath string) bool {
	glob = strings.TrimPrefix(glob, "**/")
	if strings.Contains(glob, "/") {
		if ok, _ := path.Match(glob, relPath); ok {
			return true
		}
		return strings.HasSuffix(relPath, "/"+glob)
	}
	ok, _ := path.Match(glob, path.Base(relPath))
	return ok
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
