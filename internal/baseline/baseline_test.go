package baseline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/cmslens/internal/rule"
)

func sampleFindings() []rule.Finding {
	return []rule.Finding{
		{Code: "SEC-001", File: "src/a.cs", Line: 10, Severity: rule.SeverityCritical},
		{Code: "ARCH-002", File: "src/b.cs", Line: 4, Severity: rule.SeverityWarning},
	}
}

func TestNewDeduplicatesAndSorts(t *testing.T) {
	findings := append(sampleFindings(), sampleFindings()...)
	b := New("sitecore", findings, time.Now())
	want := []string{"ARCH-002@src/b.cs:4", "SEC-001@src/a.cs:10"}
	if diff := cmp.Diff(want, b.Fingerprints); diff != "" {
		t.Fatalf("fingerprints mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchExactAndFileFallback(t *testing.T) {
	b := New("sitecore", sampleFindings(), time.Now())

	exact := rule.Finding{Code: "SEC-001", File: "src/a.cs", Line: 10}
	assert.True(t, b.Match(exact))

	drifted := rule.Finding{Code: "SEC-001", File: "src/a.cs", Line: 14}
	assert.True(t, b.Match(drifted), "line drift within a file should still match")

	otherFile := rule.Finding{Code: "SEC-001", File: "src/c.cs", Line: 10}
	assert.False(t, b.Match(otherFile))

	otherCode := rule.Finding{Code: "SEC-009", File: "src/a.cs", Line: 10}
	assert.False(t, b.Match(otherCode))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	original := New("umbraco", sampleFindings(), time.Now())
	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original.Fingerprints, loaded.Fingerprints)
	assert.Equal(t, "umbraco", loaded.Plugin)
	assert.True(t, loaded.Match(rule.Finding{Code: "SEC-001", File: "src/a.cs", Line: 10}))
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "fingerprints": []}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestNilBaselineMatchesNothing(t *testing.T) {
	var b *Baseline
	assert.False(t, b.Match(rule.Finding{Code: "SEC-001", File: "a", Line: 1}))
}
