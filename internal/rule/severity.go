package rule

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Severity ranks how urgent a finding is. The zero value is invalid so that
// a rule which never set its severity fails validation instead of silently
// reporting Info.
type Severity int

const (
	SeverityInfo Severity = iota + 1
	SeverityWarning
	SeverityCritical
)

// ParseSeverity accepts the spellings used in agent documents and CLI flags.
func ParseSeverity(value string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	}
	return 0, fmt.Errorf("rule: unknown severity %q", value)
}

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Label returns the capitalized form used in report tables.
func (s Severity) Label() string {
	switch s {
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityCritical:
		return "Critical"
	}
	return s.String()
}

// Weight is the score penalty a finding of this severity contributes.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 10
	case SeverityWarning:
		return 3
	case SeverityInfo:
		return 1
	}
	return 0
}

// Valid reports whether the severity is one of the three known levels.
func (s Severity) Valid() bool {
	return s >= SeverityInfo && s <= SeverityCritical
}

// UnmarshalYAML decodes the string form used in agent frontmatter.
func (s *Severity) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML encodes the lowercase string form.
func (s Severity) MarshalYAML() (any, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("rule: cannot encode severity %d", int(s))
	}
	return s.String(), nil
}

// MarshalJSON encodes the lowercase string form for baselines and tracking.
func (s Severity) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("rule: cannot encode severity %d", int(s))
	}
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes the string form.
func (s *Severity) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
