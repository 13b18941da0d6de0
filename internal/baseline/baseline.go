// Package baseline persists accepted findings so later runs only report new
// issues. A baseline stores fingerprints rather than full findings: matching
// is by code@file:line with a code@file fallback so findings that drift a
// few lines inside an edited file do not reappear.
package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/kestrelworks/cmslens/internal/rule"
)

// SchemaVersion guards against reading baselines from future releases.
const SchemaVersion = 1

// Baseline is the persisted form.
type Baseline struct {
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	Plugin       string    `json:"plugin,omitempty"`
	Fingerprints []string  `json:"fingerprints"`

	exact map[string]struct{}
	files map[string]struct{}
}

// New builds a baseline from the findings of a run.
func New(pluginName string, findings []rule.Finding, now time.Time) *Baseline {
	b := &Baseline{
		Version:   SchemaVersion,
		CreatedAt: now.UTC(),
		Plugin:    pluginName,
	}
	seen := map[string]struct{}{}
	for _, f := range findings {
		fp := f.Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		b.Fingerprints = append(b.Fingerprints, fp)
	}
	sort.Strings(b.Fingerprints)
	b.index()
	return b
}

// Load reads a baseline file.
func Load(path string) (*Baseline, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("baseline: read %s: %w", path, err)
	}
	var b Baseline
	if err := json.Unmarshal(content, &b); err != nil {
		return nil, fmt.Errorf("baseline: parse %s: %w", path, err)
	}
	if b.Version != SchemaVersion {
		return nil, fmt.Errorf("baseline: %s has unsupported version %d", path, b.Version)
	}
	b.index()
	return &b, nil
}

// Save writes the baseline as indented JSON.
func (b *Baseline) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("baseline: encode: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("baseline: write %s: %w", path, err)
	}
	return nil
}

// Match reports whether the finding was present when the baseline was taken.
func (b *Baseline) Match(f rule.Finding) bool {
	if b == nil {
		return false
	}
	if _, ok := b.exact[f.Fingerprint()]; ok {
		return true
	}
	_, ok := b.files[f.FileFingerprint()]
	return ok
}

func (b *Baseline) index() {
	b.exact = make(map[string]struct{}, len(b.Fingerprints))
	b.files = make(map[string]struct{}, len(b.Fingerprints))
	for _, fp := range b.Fingerprints {
		b.exact[fp] = struct{}{}
		if i := lastColon(fp); i > 0 {
			b.files[fp[:i]] = struct{}{}
		}
	}
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}
