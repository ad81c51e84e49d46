package source

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/repoingest/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestListCodeFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "pkg/util/strings.py", "def f():\n    pass\n")
	writeFile(t, root, "README.md", "# Title\n")
	writeFile(t, root, "notes.txt", "not code")
	writeFile(t, root, "image.PNG", "binary")
	writeFile(t, root, "node_modules/lib/index.js", "module.exports = 1")
	writeFile(t, root, "vendor/x/x.go", "package x")
	writeFile(t, root, "app.egg-info/setup.py", "x = 1")
	writeFile(t, root, "Build.JS", "upper ext")
	writeFile(t, root, "big.json", strings.Repeat("a", MaxFileSize+1))

	g := NewGit(WithGitLogger(quietLogger()))
	files, err := g.ListCodeFiles(context.Background(), &models.WorkingCopy{Dir: root})
	require.NoError(t, err)

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	assert.ElementsMatch(t, []string{"main.go", "pkg/util/strings.py", "README.md", "Build.JS"}, paths)

	for _, f := range files {
		if f.Path == "Build.JS" {
			assert.Equal(t, ".JS", f.Extension)
		}
		if f.Path == "main.go" {
			assert.Equal(t, "package main\n", f.Content)
			assert.Equal(t, int64(13), f.Size)
		}
	}
}

func TestListCodeFiles_MissingDir(t *testing.T) {
	g := NewGit(WithGitLogger(quietLogger()))
	_, err := g.ListCodeFiles(context.Background(), &models.WorkingCopy{Dir: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

func gitOrSkip(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Ada", "GIT_AUTHOR_EMAIL=ada@example.com",
		"GIT_COMMITTER_NAME=Ada", "GIT_COMMITTER_EMAIL=ada@example.com",
		"GIT_CONFIG_GLOBAL=/dev/null", "GIT_CONFIG_NOSYSTEM=1",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestCloneAndListCommits(t *testing.T) {
	gitOrSkip(t)
	ctx := context.Background()

	origin := t.TempDir()
	gitCmd(t, origin, "init", "--quiet")
	writeFile(t, origin, "main.go", "package main\n")
	gitCmd(t, origin, "add", ".")
	gitCmd(t, origin, "commit", "--quiet", "-m", "Initial commit")
	writeFile(t, origin, "lib/lib.go", "package lib\n\nfunc F() {}\n")
	gitCmd(t, origin, "add", ".")
	gitCmd(t, origin, "commit", "--quiet", "-m", "Add lib\n\nWith a body.")

	g := NewGit(WithGitLogger(quietLogger()))
	dest := filepath.Join(t.TempDir(), "job1")
	wc, err := g.Clone(ctx, origin, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, wc.Dir)
	assert.Len(t, wc.HeadSHA, 40)

	commits, err := g.ListCommits(ctx, wc, 10)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	newest := commits[0]
	assert.Equal(t, wc.HeadSHA, newest.SHA)
	assert.Equal(t, "Add lib\n\nWith a body.", newest.Message)
	assert.Equal(t, "Ada", newest.Author)
	assert.Equal(t, "ada@example.com", newest.AuthorEmail)
	assert.Equal(t, []string{"lib/lib.go"}, newest.Files)
	assert.Contains(t, newest.Diff, "+func F() {}")
	assert.Equal(t, "Initial commit", commits[1].Message)

	limited, err := g.ListCommits(ctx, wc, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	files, err := g.ListCodeFiles(ctx, wc)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	first, err := g.Commit(ctx, wc, "HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, commits[1].SHA, first.SHA)
	assert.Equal(t, []string{"main.go"}, first.Files)
	assert.Contains(t, first.Diff, "+package main")

	_, err = g.Commit(ctx, wc, "no-such-rev")
	assert.Error(t, err)

	require.NoError(t, g.Release(wc))
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, g.Release(wc), "release is idempotent")
}

func TestCloneFailure(t *testing.T) {
	gitOrSkip(t)
	g := NewGit(WithGitLogger(quietLogger()))
	_, err := g.Clone(context.Background(), filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "dest"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git clone")
}

func TestChangedFiles(t *testing.T) {
	diff := "diff --git a/a.go b/a.go\nindex 1..2\n--- a/a.go\n+++ b/a.go\n" +
		"diff --git a/old.txt b/new.txt\nsimilarity index 90%\n"
	assert.Equal(t, []string{"a.go", "new.txt"}, changedFiles(diff))
}

func TestRelease_Nil(t *testing.T) {
	assert.NoError(t, NewGit().Release(nil))
}
