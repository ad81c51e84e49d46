// Package source clones repositories and extracts code files, commits,
// issues and pull requests from them.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raphaelgruber/repoingest/internal/models"
)

// Extraction limits.
const (
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize = 1_000_000
	// MaxCommitDiff caps the diff kept per commit, in characters.
	MaxCommitDiff = 10_000
)

// CodeExtensions lists the file extensions treated as code or docs.
var CodeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true, ".java": true,
	".cpp": true, ".c": true, ".h": true, ".hpp": true, ".go": true, ".rs": true,
	".rb": true, ".php": true, ".swift": true, ".kt": true, ".scala": true, ".r": true,
	".m": true, ".mm": true, ".cs": true, ".fs": true, ".clj": true, ".ex": true,
	".exs": true, ".erl": true, ".hs": true, ".lua": true, ".pl": true, ".sh": true,
	".bash": true, ".zsh": true, ".sql": true, ".html": true, ".css": true, ".scss": true,
	".sass": true, ".less": true, ".vue": true, ".svelte": true, ".md": true, ".json": true,
	".yaml": true, ".yml": true, ".toml": true, ".xml": true, ".proto": true,
	".graphql": true, ".sol": true, ".v": true, ".vhd": true,
}

// SkipDirectories lists directory names never descended into.
var SkipDirectories = map[string]bool{
	"node_modules": true, ".git": true, "__pycache__": true, "venv": true, ".venv": true,
	"env": true, "dist": true, "build": true, "target": true, "out": true, ".next": true,
	".nuxt": true, "vendor": true, "bower_components": true, "coverage": true,
	".pytest_cache": true, ".mypy_cache": true, "eggs": true, ".tox": true, "htmlcov": true,
}

func skipDir(name string) bool {
	return SkipDirectories[name] || strings.HasSuffix(name, ".egg-info")
}

// Git works with local clones through the git CLI.
type Git struct {
	binary string
	depth  int
	logger *slog.Logger
}

// GitOption configures Git.
type GitOption func(*Git)

// WithGitBinary sets the git executable. Default "git".
func WithGitBinary(path string) GitOption {
	return func(g *Git) { g.binary = path }
}

// WithCloneDepth makes clones shallow. Zero clones the full history.
func WithCloneDepth(depth int) GitOption {
	return func(g *Git) { g.depth = depth }
}

// WithGitLogger sets the logger. Default is slog.Default().
func WithGitLogger(logger *slog.Logger) GitOption {
	return func(g *Git) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGit creates a git CLI wrapper.
func NewGit(opts ...GitOption) *Git {
	g := &Git{binary: "git", logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// run executes git with -C dir and returns stdout. Stderr is included in
// the error on failure.
func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	full := args
	if dir != "" {
		full = append([]string{"-C", dir}, args...)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.binary, full...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w (stderr: %s)",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Clone clones repoURL into dest, which must not exist yet.
func (g *Git) Clone(ctx context.Context, repoURL, dest string) (*models.WorkingCopy, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create clone parent: %w", err)
	}

	args := []string{"clone", "--quiet"}
	if g.depth > 0 {
		args = append(args, "--depth", strconv.Itoa(g.depth))
	}
	args = append(args, "--", repoURL, dest)

	g.logger.Info("cloning repository", "repo_url", repoURL, "dest", dest)
	if _, err := g.run(ctx, "", args...); err != nil {
		return nil, err
	}

	wc := &models.WorkingCopy{RepoURL: repoURL, Dir: dest}
	// An empty repository has no HEAD yet.
	if out, err := g.run(ctx, dest, "rev-parse", "HEAD"); err == nil {
		wc.HeadSHA = strings.TrimSpace(out)
	}
	return wc, nil
}

// ListCodeFiles walks the working copy and returns every file with a known
// extension outside the skipped directories. Paths are slash-separated and
// relative to the working copy root. Unreadable files are skipped.
func (g *Git) ListCodeFiles(ctx context.Context, wc *models.WorkingCopy) ([]models.CodeFile, error) {
	var files []models.CodeFile
	err := filepath.WalkDir(wc.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == wc.Dir {
				return err
			}
			g.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != wc.Dir && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		ext := filepath.Ext(d.Name())
		if !CodeExtensions[strings.ToLower(ext)] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > MaxFileSize {
			g.logger.Warn("skipping large file", "path", path, "size", info.Size())
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			g.logger.Warn("failed to read file", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(wc.Dir, path)
		if err != nil {
			return nil
		}
		content := string(data)
		if !utf8.ValidString(content) {
			content = strings.ToValidUTF8(content, "")
		}
		files = append(files, models.CodeFile{
			Path:      filepath.ToSlash(rel),
			Content:   content,
			Extension: ext,
			Size:      int64(len(content)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", wc.Dir, err)
	}
	return files, nil
}

const (
	fieldSep     = "\x1f"
	recordSep    = "\x1e"
	commitFormat = "%H%x1f%an%x1f%ae%x1f%ct%x1f%B%x1e"
)

// ListCommits returns up to max commits reachable from HEAD, newest first.
// A commit whose diff cannot be rendered is kept without one.
func (g *Git) ListCommits(ctx context.Context, wc *models.WorkingCopy, max int) ([]models.Commit, error) {
	if max <= 0 {
		return nil, nil
	}
	if wc.HeadSHA == "" {
		return nil, nil
	}

	out, err := g.run(ctx, wc.Dir, "log", "-n", strconv.Itoa(max), "--format="+commitFormat)
	if err != nil {
		return nil, err
	}

	var commits []models.Commit
	for _, rec := range strings.Split(out, recordSep) {
		c, ok := parseCommit(rec)
		if !ok {
			continue
		}
		diff, err := g.run(ctx, wc.Dir, "show", "--format=", "--patch", "--no-color", c.SHA)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.Debug("no diff for commit", "sha", c.SHA, "error", err)
		} else {
			c.Files = changedFiles(diff)
			c.Diff = truncate(strings.TrimLeft(diff, "\n"), MaxCommitDiff)
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// Commit resolves a single revision with its complete diff.
func (g *Git) Commit(ctx context.Context, wc *models.WorkingCopy, rev string) (models.Commit, error) {
	out, err := g.run(ctx, wc.Dir, "log", "-n", "1", "--format="+commitFormat, rev, "--")
	if err != nil {
		return models.Commit{}, err
	}
	c, ok := parseCommit(strings.TrimSuffix(strings.TrimSpace(out), recordSep))
	if !ok {
		return models.Commit{}, fmt.Errorf("unknown revision %q", rev)
	}
	diff, err := g.run(ctx, wc.Dir, "show", "--format=", "--patch", "--no-color", c.SHA)
	if err != nil {
		return models.Commit{}, err
	}
	c.Files = changedFiles(diff)
	c.Diff = strings.TrimLeft(diff, "\n")
	return c, nil
}

func parseCommit(rec string) (models.Commit, bool) {
	rec = strings.TrimLeft(rec, "\n")
	if rec == "" {
		return models.Commit{}, false
	}
	fields := strings.SplitN(rec, fieldSep, 5)
	if len(fields) != 5 {
		return models.Commit{}, false
	}
	secs, _ := strconv.ParseInt(fields[3], 10, 64)
	return models.Commit{
		SHA:         fields[0],
		Author:      fields[1],
		AuthorEmail: fields[2],
		Date:        time.Unix(secs, 0).UTC(),
		Message:     strings.TrimRight(fields[4], "\n"),
	}, true
}

// changedFiles extracts the post-image paths from a unified diff.
func changedFiles(diff string) []string {
	var files []string
	for _, line := range strings.Split(diff, "\n") {
		rest, ok := strings.CutPrefix(line, "diff --git ")
		if !ok {
			continue
		}
		if i := strings.LastIndex(rest, " b/"); i >= 0 {
			files = append(files, rest[i+3:])
		}
	}
	return files
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Release removes the working copy. Missing directories are not an error.
func (g *Git) Release(wc *models.WorkingCopy) error {
	if wc == nil || wc.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(wc.Dir); err != nil {
		return fmt.Errorf("remove %s: %w", wc.Dir, err)
	}
	g.logger.Debug("released working copy", "dir", wc.Dir)
	return nil
}
