package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/repoingest/internal/models"
	"github.com/raphaelgruber/repoingest/internal/parser"
)

// Formatting caps.
const (
	MaxDiffChars      = 5000
	MaxComments       = 10
	MaxReviewComments = 10
)

// ErrMalformedEntity indicates an entity missing a field its document needs.
var ErrMalformedEntity = errors.New("malformed entity")

// Formatter converts raw entities into documents.
type Formatter struct {
	chunker  *parser.Chunker
	chunking models.ChunkingConfig
	now      func() time.Time
}

// NewFormatter creates a formatter. A nil chunker uses the default registry.
func NewFormatter(chunker *parser.Chunker, chunking models.ChunkingConfig) *Formatter {
	if chunker == nil {
		chunker = parser.NewChunker(nil)
	}
	if chunking.MaxSize <= 0 {
		chunking = models.DefaultChunkingConfig()
	}
	return &Formatter{chunker: chunker, chunking: chunking, now: time.Now}
}

// FormatStats counts formatted entities by type.
type FormatStats struct {
	CodeFiles    int
	Commits      int
	Issues       int
	PullRequests int
	Documents    int
	Failed       int
}

func (s *FormatStats) count(kind models.DocumentType) {
	switch kind {
	case models.DocumentTypeCode:
		s.CodeFiles++
	case models.DocumentTypeCommit:
		s.Commits++
	case models.DocumentTypeIssue:
		s.Issues++
	case models.DocumentTypePullRequest:
		s.PullRequests++
	}
}

// FormatBatch formats every entity, skipping and counting malformed ones.
func (f *Formatter) FormatBatch(entities []models.Entity, repoURL, repoName string, logger *slog.Logger) ([]models.Document, FormatStats) {
	if logger == nil {
		logger = slog.Default()
	}
	var docs []models.Document
	var stats FormatStats
	for _, e := range entities {
		out, err := f.Format(e, repoURL, repoName)
		if err != nil {
			stats.Failed++
			logger.Warn("skipping entity", "kind", kindOf(e), "error", err)
			continue
		}
		stats.count(e.Kind())
		docs = append(docs, out...)
	}
	stats.Documents = len(docs)
	return docs, stats
}

func kindOf(e models.Entity) string {
	return fmt.Sprintf("%T", e)
}

// Format converts one entity into one or more documents.
func (f *Formatter) Format(e models.Entity, repoURL, repoName string) (docs []models.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("%w: %w: %v", ErrFormatting, ErrMalformedEntity, r)
		}
	}()

	ingestedAt := f.now().UTC().Format(time.RFC3339)
	switch v := e.(type) {
	case models.CodeFile:
		return f.formatCode(v, repoURL, repoName, ingestedAt)
	case *models.CodeFile:
		if v == nil {
			break
		}
		return f.formatCode(*v, repoURL, repoName, ingestedAt)
	case models.Commit:
		return f.formatCommit(v, repoURL, repoName, ingestedAt)
	case *models.Commit:
		if v == nil {
			break
		}
		return f.formatCommit(*v, repoURL, repoName, ingestedAt)
	case models.Issue:
		return f.formatIssue(v, repoURL, repoName, ingestedAt)
	case *models.Issue:
		if v == nil {
			break
		}
		return f.formatIssue(*v, repoURL, repoName, ingestedAt)
	case models.PullRequest:
		return f.formatPullRequest(v, repoURL, repoName, ingestedAt)
	case *models.PullRequest:
		if v == nil {
			break
		}
		return f.formatPullRequest(*v, repoURL, repoName, ingestedAt)
	}
	return nil, fmt.Errorf("%w: %w: unsupported entity %T", ErrFormatting, ErrMalformedEntity, e)
}

func baseMetadata(kind models.DocumentType, repoURL, repoName, ingestedAt string) map[string]any {
	return map[string]any{
		models.MetaDocumentType: string(kind),
		models.MetaRepoURL:      repoURL,
		models.MetaRepoName:     repoName,
		models.MetaIngestedAt:   ingestedAt,
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrFormatting, ErrMalformedEntity, fmt.Sprintf(format, args...))
}

func (f *Formatter) formatCode(file models.CodeFile, repoURL, repoName, ingestedAt string) ([]models.Document, error) {
	if strings.TrimSpace(file.Path) == "" {
		return nil, malformed("code file without path")
	}

	chunks := f.chunker.Chunk(file.Content, file.Path, f.chunking.MaxSize, f.chunking.Overlap)
	family := f.chunker.Registry().Family(file.Path)

	var title string
	if family == parser.FamilyMarkdown {
		title = parser.MarkdownTitle(file.Content)
	}

	docs := make([]models.Document, 0, len(chunks))
	for i, c := range chunks {
		meta := baseMetadata(models.DocumentTypeCode, repoURL, repoName, ingestedAt)
		meta[models.MetaFilePath] = file.Path
		meta[models.MetaChunkIndex] = i
		meta[models.MetaTotalChunks] = len(chunks)
		meta[models.MetaStartLine] = c.StartLine
		meta[models.MetaEndLine] = c.EndLine
		meta[models.MetaFileExtension] = file.Extension
		if family != "" {
			meta["language"] = family
		}
		if family == parser.FamilyMarkdown {
			if path := parser.HeadingPath(file.Content, c.StartLine); path != "" {
				meta["heading_path"] = path
			}
			if title != "" {
				meta["doc_title"] = title
			}
		}

		docs = append(docs, models.Document{
			Type:     models.DocumentTypeCode,
			Content:  fmt.Sprintf("File: %s\nLines: %d-%d\n\n%s\n", file.Path, c.StartLine, c.EndLine, c.Content),
			Metadata: meta,
		})
	}
	return docs, nil
}

func (f *Formatter) formatCommit(c models.Commit, repoURL, repoName, ingestedAt string) ([]models.Document, error) {
	if strings.TrimSpace(c.SHA) == "" {
		return nil, malformed("commit without sha")
	}

	date := formatTime(c.Date)
	var b strings.Builder
	fmt.Fprintf(&b, "Commit: %s\nAuthor: %s\nDate: %s\n\nMessage:\n%s\n", c.ShortSHA(), c.Author, date, c.Message)
	if c.Diff != "" {
		fmt.Fprintf(&b, "\nChanges:\n%s", truncateRunes(c.Diff, MaxDiffChars))
	}

	meta := baseMetadata(models.DocumentTypeCommit, repoURL, repoName, ingestedAt)
	meta[models.MetaCommitSHA] = c.SHA
	meta[models.MetaCommitAuthor] = c.Author
	meta[models.MetaCommitAuthorEmail] = c.AuthorEmail
	meta[models.MetaCommitDate] = date

	return []models.Document{{Type: models.DocumentTypeCommit, Content: b.String(), Metadata: meta}}, nil
}

func (f *Formatter) formatIssue(is models.Issue, repoURL, repoName, ingestedAt string) ([]models.Document, error) {
	if is.Number <= 0 {
		return nil, malformed("issue number %d", is.Number)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Issue #%d: %s\nState: %s\nAuthor: %s\nCreated: %s\nLabels: %s\n\nDescription:\n%s\n",
		is.Number, is.Title, is.State, is.Author, formatTime(is.CreatedAt), strings.Join(is.Labels, ", "), is.Body)
	writeComments(&b, is.Comments)

	meta := baseMetadata(models.DocumentTypeIssue, repoURL, repoName, ingestedAt)
	meta[models.MetaIssueNumber] = is.Number
	meta[models.MetaIssueTitle] = is.Title
	meta[models.MetaIssueState] = is.State
	meta[models.MetaIssueAuthor] = is.Author
	meta[models.MetaIssueLabels] = strings.Join(is.Labels, ",")
	meta[models.MetaCreatedAt] = formatTime(is.CreatedAt)
	if mentions := parser.ExtractMentions(is.Body); len(mentions) > 0 {
		meta["mentions"] = strings.Join(mentions, ",")
	}

	return []models.Document{{Type: models.DocumentTypeIssue, Content: b.String(), Metadata: meta}}, nil
}

func (f *Formatter) formatPullRequest(pr models.PullRequest, repoURL, repoName, ingestedAt string) ([]models.Document, error) {
	if pr.Number <= 0 {
		return nil, malformed("pull request number %d", pr.Number)
	}

	merged := "No"
	if pr.Merged() {
		merged = "Yes"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Pull Request #%d: %s\nState: %s\nAuthor: %s\nCreated: %s\nBranches: %s → %s\nLabels: %s\nMerged: %s\n\nDescription:\n%s\n",
		pr.Number, pr.Title, pr.State, pr.Author, formatTime(pr.CreatedAt),
		orUnknown(pr.HeadBranch), orUnknown(pr.BaseBranch), strings.Join(pr.Labels, ", "), merged, pr.Body)
	writeComments(&b, pr.Comments)

	if len(pr.ReviewComments) > 0 {
		b.WriteString("\n\nReview Comments:\n")
		for i, c := range pr.ReviewComments {
			if i >= MaxReviewComments {
				break
			}
			fmt.Fprintf(&b, "\n--- Review Comment %d by %s on %s (%s) ---\n%s\n",
				i+1, c.Author, orUnknown(c.Path), formatTime(c.CreatedAt), c.Body)
		}
	}

	meta := baseMetadata(models.DocumentTypePullRequest, repoURL, repoName, ingestedAt)
	meta[models.MetaPRNumber] = pr.Number
	meta[models.MetaPRTitle] = pr.Title
	meta[models.MetaPRState] = pr.State
	meta[models.MetaPRAuthor] = pr.Author
	meta[models.MetaPRLabels] = strings.Join(pr.Labels, ",")
	meta[models.MetaBaseBranch] = pr.BaseBranch
	meta[models.MetaHeadBranch] = pr.HeadBranch
	meta[models.MetaCreatedAt] = formatTime(pr.CreatedAt)
	meta[models.MetaMerged] = pr.Merged()

	return []models.Document{{Type: models.DocumentTypePullRequest, Content: b.String(), Metadata: meta}}, nil
}

func writeComments(b *strings.Builder, comments []models.Comment) {
	if len(comments) == 0 {
		return
	}
	b.WriteString("\n\nComments:\n")
	for i, c := range comments {
		if i >= MaxComments {
			break
		}
		fmt.Fprintf(b, "\n--- Comment %d by %s (%s) ---\n%s\n", i+1, c.Author, formatTime(c.CreatedAt), c.Body)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
