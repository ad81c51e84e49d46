package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/repoingest/internal/models"
	"github.com/raphaelgruber/repoingest/internal/store"
)

// repositoryRow is the stored shape of a repository record.
type repositoryRow struct {
	ID            *surrealmodels.RecordID `json:"id,omitempty"`
	RepoURL       string                  `json:"repo_url"`
	RepoName      string                  `json:"repo_name"`
	IngestedAt    time.Time               `json:"ingested_at"`
	DocumentCount int                     `json:"document_count"`
	LastCommitSHA *string                 `json:"last_commit_sha,omitempty"`
}

type jobRefRow struct {
	RepoURL string `json:"repo_url"`
}

// Snapshotter implements store.Snapshotter on top of a Client.
type Snapshotter struct {
	c *Client
}

var _ store.Snapshotter = (*Snapshotter)(nil)

// NewSnapshotter returns a snapshotter using c. Call InitSchema first.
func NewSnapshotter(c *Client) *Snapshotter {
	return &Snapshotter{c: c}
}

func (s *Snapshotter) SaveRepository(ctx context.Context, rec models.RepositoryRecord) error {
	sql := `
		UPSERT type::record("repository", $url) SET
			repo_url = $url,
			repo_name = $name,
			ingested_at = $ingested_at,
			document_count = $count,
			last_commit_sha = $sha
	`
	err := s.c.exec(ctx, sql, map[string]any{
		"url":         rec.RepoURL,
		"name":        rec.RepoName,
		"ingested_at": rec.IngestedAt.UTC(),
		"count":       rec.DocumentCount,
		"sha":         rec.LastCommitSHA,
	})
	if err != nil {
		return fmt.Errorf("upsert repository: %w", err)
	}
	return nil
}

func (s *Snapshotter) LoadRepositories(ctx context.Context) ([]models.RepositoryRecord, error) {
	results, err := surrealdb.Query[[]repositoryRow](ctx, s.c.db, `SELECT * FROM repository ORDER BY repo_url`, nil)
	if err != nil {
		return nil, fmt.Errorf("select repositories: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	rows := (*results)[0].Result
	recs := make([]models.RepositoryRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, models.RepositoryRecord{
			RepoURL:       r.RepoURL,
			RepoName:      r.RepoName,
			IngestedAt:    r.IngestedAt,
			DocumentCount: r.DocumentCount,
			LastCommitSHA: r.LastCommitSHA,
		})
	}
	return recs, nil
}

func (s *Snapshotter) SaveJobRef(ctx context.Context, jobID, repoURL string) error {
	err := s.c.exec(ctx, `UPSERT type::record("job_ref", $id) SET repo_url = $url`,
		map[string]any{"id": jobID, "url": repoURL})
	if err != nil {
		return fmt.Errorf("upsert job ref: %w", err)
	}
	return nil
}

func (s *Snapshotter) LookupJobRef(ctx context.Context, jobID string) (string, error) {
	results, err := surrealdb.Query[[]jobRefRow](ctx, s.c.db,
		`SELECT repo_url FROM type::record("job_ref", $id)`,
		map[string]any{"id": jobID})
	if err != nil {
		return "", fmt.Errorf("select job ref: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return "", fmt.Errorf("job %s: %w", jobID, store.ErrNotFound)
	}
	return (*results)[0].Result[0].RepoURL, nil
}

// Close closes the underlying client.
func (s *Snapshotter) Close(ctx context.Context) error {
	return s.c.Close(ctx)
}
