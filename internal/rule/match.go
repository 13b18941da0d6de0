package rule

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// SuppressionMarker silences a specific rule when it appears on the flagged
// line or the line directly above it, e.g. `// cmslens:ignore SEC-003`.
const SuppressionMarker = "cmslens:ignore"

// Finding records one rule hit in one file.
type Finding struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Excerpt  string   `json:"excerpt"`
	Message  string   `json:"message"`
}

// Fingerprint identifies a finding across runs for baseline matching.
func (f Finding) Fingerprint() string {
	return f.Code + "@" + f.File + ":" + strconv.Itoa(f.Line)
}

// FileFingerprint is the line-agnostic fallback used when a finding drifted
// within a file between runs.
func (f Finding) FileFingerprint() string {
	return f.Code + "@" + f.File
}

// Match applies a compiled rule to file contents, one finding per matching
// line. Lines carrying a suppression marker for the rule's code, or preceded
// by one, are skipped.
func Match(c Compiled, relPath string, content []byte) []Finding {
	if !c.AppliesTo(relPath) {
		return nil
	}
	lines := strings.Split(string(content), "\n")
	var findings []Finding
	for i, line := range lines {
		if !matchLine(c, line) {
			continue
		}
		if suppressed(c.Code, line) || (i > 0 && suppressed(c.Code, lines[i-1])) {
			continue
		}
		findings = append(findings, Finding{
			Code:     c.Code,
			Severity: c.Severity,
			Category: c.Category,
			File:     relPath,
			Line:     i + 1,
			Excerpt:  truncate(strings.TrimSpace(line), 160),
			Message:  c.Title,
		})
	}
	return findings
}

func matchLine(c Compiled, line string) bool {
	hit := false
	for _, re := range c.patterns {
		if re.MatchString(line) {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	for _, re := range c.excludes {
		if re.MatchString(line) {
			return false
		}
	}
	return true
}

func suppressed(code, line string) bool {
	idx := strings.Index(line, SuppressionMarker)
	if idx < 0 {
		return false
	}
	rest := line[idx+len(SuppressionMarker):]
	for _, token := range strings.Fields(rest) {
		if strings.EqualFold(strings.TrimRight(token, ",;"), code) {
			return true
		}
	}
	return false
}

// truncate cuts on a rune boundary so excerpts stay valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
