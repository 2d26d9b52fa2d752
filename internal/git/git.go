package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Client provides the revision-control queries the backport runner needs
type Client interface {
	// TopLevel returns the absolute path of the work-tree root
	TopLevel(ctx context.Context) (string, error)
	// StagedFiles returns paths staged for the next commit under root,
	// relative to the work-tree root
	StagedFiles(ctx context.Context, root string) ([]string, error)
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct {
	dir string
}

// NewShellClient creates a git client operating in the given directory
func NewShellClient(dir string) *ShellClient {
	return &ShellClient{dir: dir}
}

// TopLevel runs git rev-parse --show-toplevel
func (c *ShellClient) TopLevel(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", c.dir, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", withStderr(err))
	}
	return strings.TrimSpace(string(output)), nil
}

// StagedFiles runs git diff --cached --name-only restricted to root
func (c *ShellClient) StagedFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", c.dir, "diff", "--cached", "--name-only", "--", root)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --cached failed: %w", withStderr(err))
	}
	return parseFileList(string(output)), nil
}

// parseFileList parses newline-separated file paths from git output.
func parseFileList(output string) []string {
	output = strings.TrimSpace(output)
	if output == "" {
		return []string{}
	}

	lines := strings.Split(output, "\n")
	files := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files
}

// withStderr attaches captured stderr to exec errors so failures are
// diagnosable from the log line alone.
func withStderr(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return err
}
