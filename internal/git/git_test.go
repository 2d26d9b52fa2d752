package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initRepo creates a git repository with identity configured for commits.
func initRepo(t *testing.T, dir string) {
	t.Helper()
	requireGit(t)
	cmds := [][]string{
		{"git", "init", "-b", "main", dir},
		{"git", "-C", dir, "config", "user.email", "test@test.com"},
		{"git", "-C", dir, "config", "user.name", "Test"},
	}
	for _, args := range cmds {
		if out, err := exec.Command(args[0], args[1:]...).CombinedOutput(); err != nil {
			t.Fatalf("%v: %s", err, out)
		}
	}
}

// stageFile writes a file relative to the repo root and stages it.
func stageFile(t *testing.T, repoDir, rel, content string) {
	t.Helper()
	abs := filepath.Join(repoDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if out, err := exec.Command("git", "-C", repoDir, "add", rel).CombinedOutput(); err != nil {
		t.Fatalf("git add: %v: %s", err, out)
	}
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func TestStagedFiles(t *testing.T) {
	ctx := context.Background()
	repoDir := t.TempDir()
	initRepo(t, repoDir)

	stageFile(t, repoDir, "versions/latest/modules/foo/a.adoc", "= A\n")
	stageFile(t, repoDir, "versions/latest/modules/foo/b.adoc", "= B\n")
	stageFile(t, repoDir, "versions/v2.11/modules/foo/a.adoc", "= old A\n")
	stageFile(t, repoDir, "README.adoc", "= Readme\n")

	client := NewShellClient(repoDir)
	staged, err := client.StagedFiles(ctx, "versions/latest")
	if err != nil {
		t.Fatalf("StagedFiles: %v", err)
	}

	want := []string{
		"versions/latest/modules/foo/a.adoc",
		"versions/latest/modules/foo/b.adoc",
	}
	if len(staged) != len(want) {
		t.Fatalf("got %d staged files, want %d: %v", len(staged), len(want), staged)
	}
	for i, w := range want {
		if staged[i] != w {
			t.Errorf("staged[%d] = %q, want %q", i, staged[i], w)
		}
	}
}

func TestStagedFiles_Empty(t *testing.T) {
	ctx := context.Background()
	repoDir := t.TempDir()
	initRepo(t, repoDir)

	client := NewShellClient(repoDir)
	staged, err := client.StagedFiles(ctx, "versions/latest")
	if err != nil {
		t.Fatalf("StagedFiles: %v", err)
	}
	if len(staged) != 0 {
		t.Errorf("expected no staged files, got %v", staged)
	}
}

func TestTopLevel(t *testing.T) {
	ctx := context.Background()
	repoDir := t.TempDir()
	initRepo(t, repoDir)

	subDir := filepath.Join(repoDir, "versions", "latest")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Resolve symlinks so the comparison works on platforms where the
	// temp dir is itself a symlink (e.g. /tmp on macOS).
	wantTop, err := filepath.EvalSymlinks(repoDir)
	if err != nil {
		t.Fatal(err)
	}

	for _, dir := range []string{repoDir, subDir} {
		client := NewShellClient(dir)
		top, err := client.TopLevel(ctx)
		if err != nil {
			t.Fatalf("TopLevel from %s: %v", dir, err)
		}
		gotTop, err := filepath.EvalSymlinks(top)
		if err != nil {
			t.Fatal(err)
		}
		if gotTop != wantTop {
			t.Errorf("TopLevel from %s = %s, want %s", dir, gotTop, wantTop)
		}
	}
}

func TestTopLevel_NotARepo(t *testing.T) {
	requireGit(t)
	client := NewShellClient(t.TempDir())
	if _, err := client.TopLevel(context.Background()); err == nil {
		t.Fatal("expected error outside a git work tree")
	}
}

func TestParseFileList(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{
			name:   "empty output",
			output: "",
			want:   []string{},
		},
		{
			name:   "whitespace only",
			output: "  \n\n",
			want:   []string{},
		},
		{
			name:   "multiple paths",
			output: "versions/latest/a.adoc\nversions/latest/b.adoc\n",
			want:   []string{"versions/latest/a.adoc", "versions/latest/b.adoc"},
		},
		{
			name:   "blank lines between paths",
			output: "a.adoc\n\nb.adoc",
			want:   []string{"a.adoc", "b.adoc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFileList(tt.output)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d: %v", len(got), len(tt.want), got)
			}
			for i, w := range tt.want {
				if got[i] != w {
					t.Errorf("entry[%d] = %q, want %q", i, got[i], w)
				}
			}
		})
	}
}
