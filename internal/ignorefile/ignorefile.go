// Package ignorefile generates and evaluates .claudeignore files: the list
// of paths the analyzer (and the hosting assistant) should never read.
// Patterns follow a gitignore subset: blank lines and # comments are
// skipped, a trailing slash marks a directory, and * globs match within a
// single path segment.
package ignorefile

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/kestrelworks/cmslens/internal/detect"
)

// FileName is the conventional ignore file name at the target root.
const FileName = ".claudeignore"

var commonEntries = []string{
	"bin/",
	"obj/",
	"node_modules/",
	"packages/",
	".vs/",
	"*.dll",
	"*.pdb",
	"*.min.js",
	"*.min.css",
}

var platformEntries = map[detect.Platform][]string{
	detect.PlatformSitecore: {
		"App_Data/",
		"sitecore/shell/",
		"sitecore modules/",
		"*.item",
	},
	detect.PlatformUmbraco: {
		"umbraco/Data/",
		"umbraco/Logs/",
		"media/",
		"App_Plugins/*/lang/",
	},
	detect.PlatformOptimizely: {
		"App_Data/",
		"modulesbin/",
		"modules/_protected/",
	},
}

// Generate returns the ignore entries for a platform, common entries first.
func Generate(platform detect.Platform) []string {
	entries := append([]string{}, commonEntries...)
	entries = append(entries, platformEntries[platform]...)
	return entries
}

// Write renders entries to path, merging with any existing user entries so
// regeneration is idempotent and never drops a hand-added line.
func Write(filePath string, platform detect.Platform) error {
	existing, err := readEntries(filePath)
	if err != nil {
		return err
	}
	merged := mergeEntries(existing, Generate(platform))

	var sb strings.Builder
	sb.WriteString("# Paths excluded from analysis. Generated by cmslens setup; hand-added\n")
	sb.WriteString("# entries are preserved on regeneration.\n")
	for _, entry := range merged {
		sb.WriteString(entry)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(filePath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("ignorefile: write %s: %w", filePath, err)
	}
	return nil
}

func readEntries(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ignorefile: read %s: %w", filePath, err)
	}
	defer f.Close()
	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries, scanner.Err()
}

func mergeEntries(existing, generated []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(generated))
	var merged []string
	for _, entry := range append(append([]string{}, generated...), existing...) {
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		merged = append(merged, entry)
	}
	sort.Strings(merged)
	return merged
}

// Matcher evaluates ignore patterns against slash-separated relative paths.
type Matcher struct {
	dirs  []string
	globs []string
	exact []string
}

// ParseMatcher builds a Matcher from ignore file contents.
func ParseMatcher(content []byte) *Matcher {
	m := &Matcher{}
	for _, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "/"):
			m.dirs = append(m.dirs, strings.TrimSuffix(line, "/"))
		case strings.ContainsAny(line, "*?"):
			m.globs = append(m.globs, line)
		default:
			m.exact = append(m.exact, line)
		}
	}
	return m
}

// Load reads and parses the ignore file at dir, returning an empty matcher
// when none exists.
func Load(dir string) (*Matcher, error) {
	content, err := os.ReadFile(path.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Matcher{}, nil
		}
		return nil, fmt.Errorf("ignorefile: load: %w", err)
	}
	return ParseMatcher(content), nil
}

// Match reports whether relPath is ignored.
func (m *Matcher) Match(relPath string) bool {
	relPath = strings.ReplaceAll(relPath, "\\", "/")
	segments := strings.Split(relPath, "/")
	for _, dir := range m.dirs {
		if strings.Contains(dir, "/") {
			if matchDirPath(dir, segments) {
				return true
			}
			continue
		}
		for i := 0; i < len(segments)-1; i++ {
			if segments[i] == dir {
				return true
			}
		}
		// A directory pattern also covers the directory entry itself.
		if segments[len(segments)-1] == dir {
			return true
		}
	}
	base := segments[len(segments)-1]
	for _, glob := range m.globs {
		target := base
		if strings.Contains(glob, "/") {
			target = relPath
		}
		if ok, _ := path.Match(glob, target); ok {
			return true
		}
	}
	for _, exact := range m.exact {
		if relPath == exact || base == exact {
			return true
		}
	}
	return false
}

// matchDirPath anchors a multi-segment directory pattern at the path root,
// matching each pattern segment against the corresponding path segment.
func matchDirPath(pattern string, segments []string) bool {
	patSegments := strings.Split(pattern, "/")
	if len(segments) < len(patSegments) {
		return false
	}
	for i, pat := range patSegments {
		if ok, _ := path.Match(pat, segments[i]); !ok {
			return false
		}
	}
	return true
}
