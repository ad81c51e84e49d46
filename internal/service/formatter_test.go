package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/repoingest/internal/models"
)

const (
	testRepoURL  = "https://github.com/acme/widgets"
	testRepoName = "acme/widgets"
)

func fixedFormatter() *Formatter {
	f := NewFormatter(nil, models.DefaultChunkingConfig())
	f.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestFormat_CodeFileChunks(t *testing.T) {
	var b strings.Builder
	for i := range 6 {
		b.WriteString("def handler_")
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString("(request):\n")
		for range 12 {
			b.WriteString("    value = compute(request) + offset * factor\n")
		}
		b.WriteString("\n")
	}
	file := models.CodeFile{Path: "app/handlers.py", Content: b.String(), Extension: ".py"}

	docs, err := fixedFormatter().Format(file, testRepoURL, testRepoName)
	require.NoError(t, err)
	require.Greater(t, len(docs), 1)

	for i, d := range docs {
		assert.Equal(t, models.DocumentTypeCode, d.Type)
		assert.Equal(t, "code", d.Metadata[models.MetaDocumentType])
		assert.Equal(t, testRepoURL, d.Metadata[models.MetaRepoURL])
		assert.Equal(t, testRepoName, d.Metadata[models.MetaRepoName])
		assert.Equal(t, "2024-05-01T12:00:00Z", d.Metadata[models.MetaIngestedAt])
		assert.Equal(t, "app/handlers.py", d.Metadata[models.MetaFilePath])
		assert.Equal(t, i, d.Metadata[models.MetaChunkIndex])
		assert.Equal(t, len(docs), d.Metadata[models.MetaTotalChunks])
		assert.Equal(t, ".py", d.Metadata[models.MetaFileExtension])
		assert.Equal(t, "python", d.Metadata["language"])

		start := d.Metadata[models.MetaStartLine].(int)
		end := d.Metadata[models.MetaEndLine].(int)
		assert.LessOrEqual(t, start, end)
		assert.True(t, strings.HasPrefix(d.Content, "File: app/handlers.py\nLines: "))
	}
}

func TestFormat_EmptyCodeFile(t *testing.T) {
	docs, err := fixedFormatter().Format(models.CodeFile{Path: "empty.go", Extension: ".go"}, testRepoURL, testRepoName)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "File: empty.go\nLines: 1-1\n\n\n", docs[0].Content)
}

func TestFormat_MarkdownMetadata(t *testing.T) {
	content := "# Guide\n\nIntro text.\n\n## Install\n\nRun the installer.\n"
	docs, err := fixedFormatter().Format(models.CodeFile{Path: "docs/guide.md", Content: content, Extension: ".md"}, testRepoURL, testRepoName)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Guide", docs[0].Metadata["doc_title"])
	assert.Equal(t, "markdown", docs[0].Metadata["language"])
}

func TestFormat_CommitTruncatesDiff(t *testing.T) {
	c := models.Commit{
		SHA:         "0123456789abcdef0123456789abcdef01234567",
		Author:      "Ada",
		AuthorEmail: "ada@example.com",
		Date:        time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Message:     "Fix the widget",
		Diff:        strings.Repeat("ä", MaxDiffChars+500),
	}

	docs, err := fixedFormatter().Format(c, testRepoURL, testRepoName)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d := docs[0]
	assert.True(t, strings.HasPrefix(d.Content, "Commit: 01234567\nAuthor: Ada\nDate: 2024-01-02T03:04:05Z\n\nMessage:\nFix the widget\n"))
	_, diff, ok := strings.Cut(d.Content, "\nChanges:\n")
	require.True(t, ok)
	assert.Equal(t, MaxDiffChars, len([]rune(diff)))

	assert.Equal(t, "commit", d.Metadata[models.MetaDocumentType])
	assert.Equal(t, c.SHA, d.Metadata[models.MetaCommitSHA])
	assert.Equal(t, "Ada", d.Metadata[models.MetaCommitAuthor])
	assert.Equal(t, "ada@example.com", d.Metadata[models.MetaCommitAuthorEmail])
	assert.Equal(t, "2024-01-02T03:04:05Z", d.Metadata[models.MetaCommitDate])
}

func TestFormat_IssueCapsComments(t *testing.T) {
	is := models.Issue{
		Number:    42,
		Title:     "Crash on start",
		Body:      "It crashes. cc @bob",
		State:     "open",
		Author:    "alice",
		CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Labels:    []string{"bug", "p1"},
	}
	for i := range MaxComments + 5 {
		is.Comments = append(is.Comments, models.Comment{Author: "c", Body: strings.Repeat("y", i+1)})
	}

	docs, err := fixedFormatter().Format(&is, testRepoURL, testRepoName)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d := docs[0]
	assert.True(t, strings.HasPrefix(d.Content, "Issue #42: Crash on start\nState: open\nAuthor: alice\n"))
	assert.Contains(t, d.Content, "Labels: bug, p1\n")
	assert.Equal(t, MaxComments, strings.Count(d.Content, "--- Comment "))
	assert.Equal(t, 42, d.Metadata[models.MetaIssueNumber])
	assert.Equal(t, "bug,p1", d.Metadata[models.MetaIssueLabels])
	assert.Equal(t, "2024-02-01T00:00:00Z", d.Metadata[models.MetaCreatedAt])
	assert.Equal(t, "bob", d.Metadata["mentions"])
}

func TestFormat_PullRequest(t *testing.T) {
	merged := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	pr := models.PullRequest{
		Issue: models.Issue{
			Number: 9,
			Title:  "Add feature",
			State:  "closed",
			Author: "carol",
			Labels: []string{"enhancement"},
		},
		MergedAt:   &merged,
		BaseBranch: "main",
		HeadBranch: "feature/x",
	}
	for range MaxReviewComments + 3 {
		pr.ReviewComments = append(pr.ReviewComments, models.ReviewComment{
			Comment: models.Comment{Author: "rev", Body: "nit"},
			Path:    "main.go",
		})
	}

	docs, err := fixedFormatter().Format(pr, testRepoURL, testRepoName)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d := docs[0]
	assert.Contains(t, d.Content, "Branches: feature/x → main\n")
	assert.Contains(t, d.Content, "Merged: Yes\n")
	assert.Equal(t, MaxReviewComments, strings.Count(d.Content, "--- Review Comment "))
	assert.Equal(t, "pull_request", d.Metadata[models.MetaDocumentType])
	assert.Equal(t, true, d.Metadata[models.MetaMerged])
	assert.Equal(t, "main", d.Metadata[models.MetaBaseBranch])
	assert.Equal(t, "feature/x", d.Metadata[models.MetaHeadBranch])
	assert.Equal(t, "enhancement", d.Metadata[models.MetaPRLabels])
}

func TestFormatBatch_SkipsMalformed(t *testing.T) {
	var nilCommit *models.Commit
	entities := []models.Entity{
		models.CodeFile{Path: "a.go", Content: "package a\n", Extension: ".go"},
		models.CodeFile{Path: "", Content: "orphan"},
		models.Commit{SHA: ""},
		nilCommit,
		models.Commit{SHA: "abcdef1234", Message: "ok"},
		models.Issue{Number: 0, Title: "bad"},
		models.Issue{Number: 1, Title: "good"},
		models.PullRequest{Issue: models.Issue{Number: 2, Title: "pr"}},
	}

	docs, stats := fixedFormatter().FormatBatch(entities, testRepoURL, testRepoName, discardLogger())
	assert.Len(t, docs, 4)
	assert.Equal(t, FormatStats{
		CodeFiles:    1,
		Commits:      1,
		Issues:       1,
		PullRequests: 1,
		Documents:    4,
		Failed:       4,
	}, stats)
}

func TestFormat_MalformedError(t *testing.T) {
	_, err := fixedFormatter().Format(models.Commit{}, testRepoURL, testRepoName)
	assert.ErrorIs(t, err, ErrMalformedEntity)
	assert.ErrorIs(t, err, ErrFormatting)
}
