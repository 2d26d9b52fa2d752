package patch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMake_IdenticalFiles(t *testing.T) {
	tmpDir := t.TempDir()
	oldPath := writeFile(t, tmpDir, "old.adoc", "= Title\n\nBody line.\n")
	newPath := writeFile(t, tmpDir, "new.adoc", "= Title\n\nBody line.\n")

	tool := NewTextTool()
	patchText, err := tool.Make(oldPath, newPath)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if patchText != "" {
		t.Errorf("expected empty patch for identical files, got %q", patchText)
	}
}

func TestMake_DifferingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	oldPath := writeFile(t, tmpDir, "old.adoc", "= Title\n\nOld body.\n")
	newPath := writeFile(t, tmpDir, "new.adoc", "= Title\n\nNew body.\n")

	tool := NewTextTool()
	patchText, err := tool.Make(oldPath, newPath)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if patchText == "" {
		t.Error("expected non-empty patch for differing files")
	}
}

func TestMake_MissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	newPath := writeFile(t, tmpDir, "new.adoc", "content\n")

	tool := NewTextTool()
	if _, err := tool.Make(filepath.Join(tmpDir, "missing.adoc"), newPath); err == nil {
		t.Fatal("expected error for missing old file")
	}
}

func TestApply_Clean(t *testing.T) {
	tmpDir := t.TempDir()
	oldContent := "= Guide\n\nStep one.\nStep two.\nStep three.\n"
	newContent := "= Guide\n\nStep one.\nStep two, revised.\nStep three.\n"
	oldPath := writeFile(t, tmpDir, "old.adoc", oldContent)
	newPath := writeFile(t, tmpDir, "new.adoc", newContent)
	target := writeFile(t, tmpDir, "target.adoc", oldContent)

	tool := NewTextTool()
	patchText, err := tool.Make(oldPath, newPath)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}

	if err := tool.Apply(target, patchText); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != newContent {
		t.Errorf("target content = %q, want %q", string(got), newContent)
	}
}

func TestApply_Rejected(t *testing.T) {
	tmpDir := t.TempDir()
	oldContent := "alpha section\nbravo section\ncharlie section\n"
	newContent := "alpha section\nbravo section, revised\ncharlie section\n"
	oldPath := writeFile(t, tmpDir, "old.adoc", oldContent)
	newPath := writeFile(t, tmpDir, "new.adoc", newContent)

	// The target diverged completely since the patch was made.
	divergedContent := "rewritten\n"
	target := writeFile(t, tmpDir, "target.adoc", divergedContent)

	tool := NewTextTool()
	patchText, err := tool.Make(oldPath, newPath)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}

	err = tool.Apply(target, patchText)
	var rejErr *RejectError
	if !errors.As(err, &rejErr) {
		t.Fatalf("expected *RejectError, got %v", err)
	}

	// Target must be untouched.
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != divergedContent {
		t.Errorf("target was modified on rejection: %q", string(got))
	}

	// Reject artifact must hold the patch text.
	rej, err := os.ReadFile(rejErr.RejectPath)
	if err != nil {
		t.Fatalf("reject file: %v", err)
	}
	if string(rej) != patchText {
		t.Errorf("reject content = %q, want patch text %q", string(rej), patchText)
	}
}

func TestApply_MissingTarget(t *testing.T) {
	tool := NewTextTool()
	err := tool.Apply(filepath.Join(t.TempDir(), "missing.adoc"), "@@ -1 +1 @@\n")
	if err == nil {
		t.Fatal("expected error for missing target")
	}
}

func TestApply_RoundTrip(t *testing.T) {
	// Make then Apply against the same base must converge on the new
	// content; a second Make must then be empty.
	tmpDir := t.TempDir()
	oldContent := "one\ntwo\nthree\nfour\n"
	newContent := "one\ntwo and a half\nthree\nfour\nfive\n"
	writeFile(t, tmpDir, "src.adoc", newContent)
	srcPath := filepath.Join(tmpDir, "src.adoc")
	target := writeFile(t, tmpDir, "dest.adoc", oldContent)

	tool := NewTextTool()
	patchText, err := tool.Make(target, srcPath)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if err := tool.Apply(target, patchText); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	again, err := tool.Make(target, srcPath)
	if err != nil {
		t.Fatalf("second Make: %v", err)
	}
	if again != "" {
		t.Errorf("expected convergence after apply, second patch = %q", again)
	}
}
