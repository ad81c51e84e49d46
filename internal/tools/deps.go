// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/repoingest/internal/models"
)

// Ingester is the ingestion service as seen by the tools.
type Ingester interface {
	Submit(ctx context.Context, req models.IngestRequest) (string, error)
	Cancel(jobID string) bool
	GetStatus(ctx context.Context, jobID string) (models.IngestionJob, error)
	ListJobs(ctx context.Context) ([]models.IngestionJob, error)
	ListRepositories(ctx context.Context) ([]models.RepositoryRecord, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Service Ingester
	Logger  *slog.Logger
}

func (d *Dependencies) logger() *slog.Logger {
	if d == nil || d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
