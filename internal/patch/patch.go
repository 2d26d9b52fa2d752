package patch

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Tool generates and applies textual patches between file pairs
type Tool interface {
	// Make returns a patch taking oldPath's content to newPath's content.
	// An empty string means the files are byte-identical.
	Make(oldPath, newPath string) (string, error)
	// Apply applies a patch to target in place. When a hunk does not
	// apply, the target is left untouched, the patch text is written to
	// <target>.rej and a *RejectError is returned.
	Apply(target, patchText string) error
}

// RejectError reports a patch that did not apply cleanly
type RejectError struct {
	Target     string
	RejectPath string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("patch does not apply cleanly to %s (reject written to %s)", e.Target, e.RejectPath)
}

// TextTool implements Tool on top of diff-match-patch
type TextTool struct {
	dmp *diffpatch.DiffMatchPatch
}

// NewTextTool creates a patch tool with strict matching. The default
// match threshold tolerates heavily diverged context, which would let a
// stale patch land on the wrong lines; backports prefer a rejection.
func NewTextTool() *TextTool {
	dmp := diffpatch.New()
	dmp.MatchThreshold = 0.25
	return &TextTool{dmp: dmp}
}

// Make computes the patch text between two files on disk
func (t *TextTool) Make(oldPath, newPath string) (string, error) {
	oldData, err := os.ReadFile(oldPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", oldPath, err)
	}
	newData, err := os.ReadFile(newPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", newPath, err)
	}
	if bytes.Equal(oldData, newData) {
		return "", nil
	}

	patches := t.dmp.PatchMake(string(oldData), string(newData))
	return t.dmp.PatchToText(patches), nil
}

// Apply re-reads the target and applies the patch in place. The target is
// re-read at application time, so content that changed since Make surfaces
// as a rejection instead of a silent mis-apply.
func (t *TextTool) Apply(target, patchText string) error {
	data, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", target, err)
	}

	patches, err := t.dmp.PatchFromText(patchText)
	if err != nil {
		return fmt.Errorf("failed to parse patch for %s: %w", target, err)
	}

	patched, applied := t.dmp.PatchApply(patches, string(data))
	for _, ok := range applied {
		if !ok {
			rejPath := target + ".rej"
			if werr := os.WriteFile(rejPath, []byte(patchText), 0644); werr != nil {
				return fmt.Errorf("patch rejected and reject file could not be written: %w", werr)
			}
			return &RejectError{Target: target, RejectPath: rejPath}
		}
	}

	mode := fs.FileMode(0644)
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode()
	}
	return writeFileAtomic(target, []byte(patched), mode)
}

// writeFileAtomic writes data via a temp file and rename so a failed write
// never leaves a half-updated target.
func writeFileAtomic(target string, data []byte, mode fs.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(target), ".backport-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, target)
}
