package backport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/docsmith/backport/internal/config"
	"github.com/docsmith/backport/internal/git"
	"github.com/docsmith/backport/internal/patch"
)

// ValidationError reports an explicitly requested version that is not
// declared in the playbook. It fails the run before any file operation.
type ValidationError struct {
	Unknown string
	Valid   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unknown version %q (valid versions: %s)", e.Unknown, strings.Join(e.Valid, ", "))
}

// Runner backports staged files from the latest tree into version trees
type Runner struct {
	settings config.Settings
	git      git.Client
	patch    patch.Tool
	logger   *slog.Logger
	out      io.Writer
	dryRun   bool
}

// New creates a new backport runner
func New(settings config.Settings, gitClient git.Client, patchTool patch.Tool, logger *slog.Logger, out io.Writer, dryRun bool) *Runner {
	return &Runner{
		settings: settings,
		git:      gitClient,
		patch:    patchTool,
		logger:   logger,
		out:      out,
		dryRun:   dryRun,
	}
}

// Run executes the complete backport pass. requested may be empty, in
// which case every discovered version is targeted.
func (r *Runner) Run(ctx context.Context, requested []string) (*Report, error) {
	r.logger.Info("starting backport",
		"playbook", r.settings.PlaybookName,
		"latest", r.settings.LatestName,
		"dry_run", r.dryRun)

	// The run must start from the work-tree root; staged paths are
	// reported relative to it.
	top, err := r.git.TopLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("not inside a git work tree: %w", err)
	}
	if !samePath(top, r.settings.ProjectRoot) {
		return nil, fmt.Errorf("must be run from the work-tree root %s, not %s", top, r.settings.ProjectRoot)
	}

	pb, err := config.Load(r.settings.PlaybookPath())
	if err != nil {
		return nil, err
	}

	latestRoot, versions := pb.VersionRoots(r.settings.LatestName)
	if latestRoot == "" {
		return nil, fmt.Errorf("playbook %s declares no %q content root", r.settings.PlaybookName, r.settings.LatestName)
	}

	targets, err := selectTargets(requested, versions)
	if err != nil {
		return nil, err
	}

	staged, err := r.git.StagedFiles(ctx, latestRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged files: %w", err)
	}

	report := &Report{}

	if len(staged) == 0 {
		fmt.Fprintf(r.out, "nothing to do: no staged files under %s\n", latestRoot)
		r.logger.Info("no staged files", "root", latestRoot)
		return report, nil
	}
	if len(targets) == 0 {
		fmt.Fprintf(r.out, "no target versions: %d staged file(s) under %s but the playbook declares no version roots\n",
			len(staged), latestRoot)
		r.logger.Warn("no target versions", "staged", len(staged))
		return report, nil
	}

	r.logger.Info("backport plan",
		"staged", len(staged),
		"versions", len(targets))

	for _, rel := range staged {
		src := filepath.Join(r.settings.ProjectRoot, filepath.FromSlash(rel))
		if _, err := os.Stat(src); err != nil {
			// Staged but no longer on disk (deleted or renamed since
			// staging); record the skip once per target version.
			for _, v := range targets {
				res := Result{Source: rel, Version: v.ID, Outcome: OutcomeSkipped, Err: err}
				r.emit(res)
				report.add(res)
			}
			continue
		}

		for _, v := range targets {
			res := r.syncPair(rel, src, v)
			r.emit(res)
			report.add(res)
		}
	}

	r.summary(report)
	return report, nil
}

// selectTargets validates explicitly requested versions against the
// discovered set, or returns the full set when none were requested.
func selectTargets(requested []string, versions []config.Version) ([]config.Version, error) {
	if len(requested) == 0 {
		return versions, nil
	}

	byID := make(map[string]config.Version, len(versions))
	valid := make([]string, 0, len(versions))
	for _, v := range versions {
		byID[v.ID] = v
		valid = append(valid, v.ID)
	}

	targets := make([]config.Version, 0, len(requested))
	for _, id := range requested {
		v, ok := byID[id]
		if !ok {
			return nil, &ValidationError{Unknown: id, Valid: valid}
		}
		targets = append(targets, v)
	}
	return targets, nil
}

// syncPair copies or patches one staged file into one version tree
func (r *Runner) syncPair(rel, src string, v config.Version) Result {
	res := Result{Source: rel, Version: v.ID}

	dest, err := MapTarget(rel, r.settings.LatestName, v.ID)
	if err != nil {
		res.Outcome = OutcomeError
		res.Err = err
		return res
	}
	res.Dest = dest
	destAbs := filepath.Join(r.settings.ProjectRoot, filepath.FromSlash(dest))

	if _, err := os.Stat(destAbs); err != nil {
		if !os.IsNotExist(err) {
			res.Outcome = OutcomeError
			res.Err = err
			return res
		}

		// Destination absent: plain byte copy, no content inspection.
		if r.dryRun {
			res.Outcome = OutcomeCopied
			return res
		}
		if err := r.copyFile(src, destAbs); err != nil {
			res.Outcome = OutcomeError
			res.Err = fmt.Errorf("failed to copy to %s: %w", dest, err)
			return res
		}
		res.Outcome = OutcomeCopied
		return res
	}

	patchText, err := r.patch.Make(destAbs, src)
	if err != nil {
		res.Outcome = OutcomeError
		res.Err = err
		return res
	}
	if patchText == "" {
		res.Outcome = OutcomeNoChanges
		return res
	}
	if r.dryRun {
		res.Outcome = OutcomePatched
		return res
	}

	if err := r.patch.Apply(destAbs, patchText); err != nil {
		var rejErr *patch.RejectError
		if errors.As(err, &rejErr) {
			res.Outcome = OutcomePatchFailed
			res.Err = err
			r.logger.Warn("patch rejected, destination left for manual review",
				"dest", dest,
				"reject", rejErr.RejectPath)
			return res
		}
		res.Outcome = OutcomeError
		res.Err = err
		return res
	}

	res.Outcome = OutcomePatched
	return res
}

// MapTarget maps a staged path under the latest tree to its destination
// under the given version. The latest segment must occur exactly once as
// a whole path element, otherwise the mapping would be ambiguous.
func MapTarget(rel, latest, version string) (string, error) {
	parts := strings.Split(rel, "/")
	idx := -1
	for i, p := range parts {
		if p != latest {
			continue
		}
		if idx >= 0 {
			return "", fmt.Errorf("path %q contains the %q segment more than once", rel, latest)
		}
		idx = i
	}
	if idx < 0 {
		return "", fmt.Errorf("path %q does not contain the %q segment", rel, latest)
	}

	parts[idx] = version
	return strings.Join(parts, "/"), nil
}

// copyFile copies a file from src to dst with atomic write, creating
// parent directories as needed
func (r *Runner) copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".backport-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	srcInfo, err := srcFile.Stat()
	if err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(srcInfo.Mode()); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}

var outcomeColors = map[Outcome]*color.Color{
	OutcomeCopied:      color.New(color.FgGreen),
	OutcomePatched:     color.New(color.FgGreen),
	OutcomeNoChanges:   color.New(color.FgCyan),
	OutcomePatchFailed: color.New(color.FgRed),
	OutcomeSkipped:     color.New(color.FgYellow),
	OutcomeError:       color.New(color.FgRed),
}

// emit writes one status line per pair; failures are never silent
func (r *Runner) emit(res Result) {
	prefix := ""
	if r.dryRun {
		prefix = "[dry-run] "
	}

	c, ok := outcomeColors[res.Outcome]
	if !ok {
		c = color.New(color.Reset)
	}

	target := res.Dest
	if target == "" {
		target = res.Source
	}
	line := fmt.Sprintf("%s%-12s %-8s %s", prefix, res.Outcome, res.Version, target)
	if res.Err != nil {
		line += ": " + res.Err.Error()
	}
	_, _ = c.Fprintln(r.out, line)

	if res.Outcome == OutcomePatchFailed {
		fmt.Fprintf(r.out, "  inspect %s and the reject file, fix by hand, then stage the result\n", target)
	}
}

// summary prints per-outcome counts after the pair loop
func (r *Runner) summary(report *Report) {
	fmt.Fprintf(r.out, "done: %d copied, %d patched, %d unchanged, %d failed, %d skipped, %d errors\n",
		report.Count(OutcomeCopied),
		report.Count(OutcomePatched),
		report.Count(OutcomeNoChanges),
		report.Count(OutcomePatchFailed),
		report.Count(OutcomeSkipped),
		report.Count(OutcomeError))

	r.logger.Info("backport complete",
		"pairs", len(report.Results),
		"failed", report.Failed())
}

// samePath compares two directories, resolving symlinks so /tmp-style
// indirection does not defeat the root check.
func samePath(a, b string) bool {
	ra, err := filepath.EvalSymlinks(a)
	if err != nil {
		ra = filepath.Clean(a)
	}
	rb, err := filepath.EvalSymlinks(b)
	if err != nil {
		rb = filepath.Clean(b)
	}
	return ra == rb
}
