package scan

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ChangedFiles lists paths modified relative to HEAD, for --changes-only
// runs. Untracked files are included so brand-new code is still reviewed.
func ChangedFiles(ctx context.Context, root string) ([]string, error) {
	diff, err := gitOutput(ctx, root, "diff", "--name-only", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("scan: list changed files: %w", err)
	}
	untracked, err := gitOutput(ctx, root, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("scan: list untracked files: %w", err)
	}
	seen := map[string]struct{}{}
	var files []string
	for _, line := range append(diff, untracked...) {
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		files = append(files, line)
	}
	return files, nil
}

func gitOutput(ctx context.Context, root string, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(out.String(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines, nil
}
