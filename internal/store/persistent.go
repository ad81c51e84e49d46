package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/repoingest/internal/models"
)

// Persistent wraps a Store and writes repository records and job
// references through to a Snapshotter. Jobs themselves stay in memory;
// after a restart a status lookup for an unknown job degrades to a
// synthesized COMPLETED job when its repository is already registered.
type Persistent struct {
	Store
	snap   Snapshotter
	logger *slog.Logger
}

var _ Store = (*Persistent)(nil)

// NewPersistent wraps inner with snap.
func NewPersistent(inner Store, snap Snapshotter, logger *slog.Logger) *Persistent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persistent{Store: inner, snap: snap, logger: logger}
}

// Restore loads the persisted repository registry into the inner store.
func (p *Persistent) Restore(ctx context.Context) (int, error) {
	recs, err := p.snap.LoadRepositories(ctx)
	if err != nil {
		return 0, fmt.Errorf("load repositories: %w", err)
	}
	for _, rec := range recs {
		if err := p.Store.PutRepository(ctx, rec); err != nil {
			return 0, err
		}
	}
	p.logger.Info("restored repository registry", "count", len(recs))
	return len(recs), nil
}

func (p *Persistent) CreateJob(ctx context.Context, job models.IngestionJob) error {
	if err := p.Store.CreateJob(ctx, job); err != nil {
		return err
	}
	if err := p.snap.SaveJobRef(ctx, job.ID, models.NormalizeRepoURL(job.RepoURL)); err != nil {
		p.logger.Warn("failed to persist job reference", "job_id", job.ID, "error", err)
	}
	return nil
}

func (p *Persistent) GetJob(ctx context.Context, id string) (models.IngestionJob, error) {
	job, err := p.Store.GetJob(ctx, id)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return job, err
	}

	repoURL, lookupErr := p.snap.LookupJobRef(ctx, id)
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			p.logger.Warn("failed to look up job reference", "job_id", id, "error", lookupErr)
		}
		return job, err
	}
	rec, repoErr := p.Store.GetRepository(ctx, repoURL)
	if repoErr != nil {
		return job, err
	}

	completed := rec.IngestedAt
	return models.IngestionJob{
		ID:                 id,
		Status:             models.JobStatusCompleted,
		RepoURL:            rec.RepoURL,
		CreatedAt:          rec.IngestedAt,
		CompletedAt:        &completed,
		DocumentsProcessed: rec.DocumentCount,
		Progress: models.NewProgress(
			models.ProgressStage, models.StageCompleted,
			models.ProgressTotalDocuments, rec.DocumentCount,
			"restored", true,
		),
	}, nil
}

func (p *Persistent) PutRepository(ctx context.Context, rec models.RepositoryRecord) error {
	if err := p.Store.PutRepository(ctx, rec); err != nil {
		return err
	}
	rec.RepoURL = models.NormalizeRepoURL(rec.RepoURL)
	if err := p.snap.SaveRepository(ctx, rec); err != nil {
		p.logger.Warn("failed to persist repository record", "repo_url", rec.RepoURL, "error", err)
	}
	return nil
}

// Close closes the snapshotter.
func (p *Persistent) Close(ctx context.Context) error {
	return p.snap.Close(ctx)
}
