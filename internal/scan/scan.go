// Package scan walks a target codebase and applies compiled rules to every
// eligible file. Files are matched concurrently with a bounded worker group;
// the walk respects the ignore matcher, skips binaries, and honors context
// cancellation.
package scan

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelworks/cmslens/internal/ignorefile"
	"github.com/kestrelworks/cmslens/internal/rule"
)

// DefaultMaxFileSize is the per-file read cap.
const DefaultMaxFileSize = 2 << 20

// DefaultConcurrency bounds the matcher worker group.
const DefaultConcurrency = 8

// SafeModeMaxFiles caps the file set when --safe-mode is active.
const SafeModeMaxFiles = 2000

// Scanner executes rules against a root directory.
type Scanner struct {
	Root        string
	Ignore      *ignorefile.Matcher
	MaxFileSize int64
	MaxFiles    int
	Concurrency int

	// Only restricts scanning to these relative paths (the --changes-only
	// file list). Empty means scan everything.
	Only []string
}

// Stats summarizes one scan.
type Stats struct {
	FilesSeen    int
	FilesScanned int
	FilesSkipped int
	Truncated    bool
}

// FileScanned is invoked per scanned file when set, for progress reporting.
type FileScanned func(relPath string)

// Run walks the tree and returns findings ordered by file, line, and code.
func (s *Scanner) Run(ctx context.Context, rules []rule.Compiled, onFile FileScanned) ([]rule.Finding, Stats, error) {
	if s.Root == "" {
		return nil, Stats{}, fmt.Errorf("scan: root is required")
	}
	if len(rules) == 0 {
		return nil, Stats{}, fmt.Errorf("scan: no rules to apply")
	}
	files, stats, err := s.collect(ctx)
	if err != nil {
		return nil, stats, err
	}

	var (
		mu         sync.Mutex
		findings   []rule.Finding
		unreadable int
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency())
	for _, relPath := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			content, err := s.readFile(relPath)
			if err != nil {
				return err
			}
			if content == nil {
				// Binary, oversized, or vanished since the walk.
				mu.Lock()
				unreadable++
				mu.Unlock()
				return nil
			}
			var local []rule.Finding
			for _, compiled := range rules {
				local = append(local, rule.Match(compiled, relPath, content)...)
			}
			if onFile != nil {
				onFile(relPath)
			}
			if len(local) > 0 {
				mu.Lock()
				findings = append(findings, local...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, stats, fmt.Errorf("scan: %w", err)
	}
	stats.FilesScanned = len(files) - unreadable
	stats.FilesSkipped += unreadable
	sortFindings(findings)
	return findings, stats, nil
}

// collect gathers the relative paths eligible for scanning.
func (s *Scanner) collect(ctx context.Context) ([]string, Stats, error) {
	stats := Stats{}
	only := s.onlySet()
	var files []string
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		relPath, relErr := filepath.Rel(s.Root, p)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if d.IsDir() {
			if relPath != "." && s.ignored(relPath) {
				return fs.SkipDir
			}
			return nil
		}
		stats.FilesSeen++
		if s.ignored(relPath) {
			stats.FilesSkipped++
			return nil
		}
		if only != nil {
			if _, ok := only[relPath]; !ok {
				stats.FilesSkipped++
				return nil
			}
		}
		if s.MaxFiles > 0 && len(files) >= s.MaxFiles {
			stats.Truncated = true
			return fs.SkipAll
		}
		files = append(files, relPath)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("scan: walk %s: %w", s.Root, err)
	}
	return files, stats, nil
}

// readFile returns nil content (no error) for binary or oversized files.
func (s *Scanner) readFile(relPath string) ([]byte, error) {
	full := filepath.Join(s.Root, filepath.FromSlash(relPath))
	info, err := os.Stat(full)
	if err != nil {
		return nil, nil
	}
	if info.Size() > s.maxFileSize() {
		return nil, nil
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, nil
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return nil, nil
	}
	return content, nil
}

func (s *Scanner) ignored(relPath string) bool {
	return s.Ignore != nil && s.Ignore.Match(relPath)
}

func (s *Scanner) onlySet() map[string]struct{} {
	if len(s.Only) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(s.Only))
	for _, p := range s.Only {
		trimmed := strings.TrimSpace(filepath.ToSlash(p))
		if trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

func (s *Scanner) concurrency() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return DefaultConcurrency
}

func (s *Scanner) maxFileSize() int64 {
	if s.MaxFileSize > 0 {
		return s.MaxFileSize
	}
	return DefaultMaxFileSize
}

func sortFindings(findings []rule.Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].Code < findings[j].Code
	})
}
