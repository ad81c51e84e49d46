// Package store holds ingestion jobs and repository records.
package store

import (
	"context"
	"errors"

	"github.com/raphaelgruber/repoingest/internal/models"
)

// Sentinel errors. Use errors.Is to check for these in calling code.
var (
	// ErrNotFound indicates the requested job or repository does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a job with the same ID was already created.
	ErrAlreadyExists = errors.New("already exists")
)

// Store is a concurrency-safe registry of jobs keyed by ID and repository
// records keyed by normalized URL. Reads return copies.
type Store interface {
	CreateJob(ctx context.Context, job models.IngestionJob) error
	GetJob(ctx context.Context, id string) (models.IngestionJob, error)
	// UpdateJob applies fn to the stored job atomically. If fn returns an
	// error the job is left unchanged and the error is returned.
	UpdateJob(ctx context.Context, id string, fn func(*models.IngestionJob) error) (models.IngestionJob, error)
	ListJobs(ctx context.Context) ([]models.IngestionJob, error)

	// PutRepository overwrites any record for the same URL.
	PutRepository(ctx context.Context, rec models.RepositoryRecord) error
	GetRepository(ctx context.Context, repoURL string) (models.RepositoryRecord, error)
	ListRepositories(ctx context.Context) ([]models.RepositoryRecord, error)
}

// Snapshotter persists the repository registry and the job-to-URL map so
// status lookups can survive a restart.
type Snapshotter interface {
	SaveRepository(ctx context.Context, rec models.RepositoryRecord) error
	LoadRepositories(ctx context.Context) ([]models.RepositoryRecord, error)
	SaveJobRef(ctx context.Context, jobID, repoURL string) error
	// LookupJobRef returns ErrNotFound for unknown jobs.
	LookupJobRef(ctx context.Context, jobID string) (string, error)
	Close(ctx context.Context) error
}
