package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/repoingest/internal/models"
	"github.com/raphaelgruber/repoingest/internal/store"
)

// JobManager applies the job state machine on top of a Store.
// All status changes go through it so terminal states stay immutable.
type JobManager struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewJobManager creates a job manager over s.
func NewJobManager(s store.Store, logger *slog.Logger) *JobManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{store: s, logger: logger, now: time.Now}
}

// Store returns the underlying store.
func (m *JobManager) Store() store.Store {
	return m.store
}

// CreateJob registers a new PENDING job for repoURL.
func (m *JobManager) CreateJob(ctx context.Context, repoURL string) (models.IngestionJob, error) {
	job := models.IngestionJob{
		ID:        uuid.New().String()[:8],
		Status:    models.JobStatusPending,
		RepoURL:   repoURL,
		CreatedAt: m.now().UTC(),
		Progress:  models.NewProgress(models.ProgressStage, models.StageInitializing),
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return models.IngestionJob{}, fmt.Errorf("create job: %w", err)
	}
	m.logger.Info("job created", "job_id", job.ID, "repo_url", repoURL)
	return job, nil
}

// GetJob returns a snapshot of the job.
func (m *JobManager) GetJob(ctx context.Context, id string) (models.IngestionJob, error) {
	return m.store.GetJob(ctx, id)
}

// ListJobs returns all jobs, most recent first.
func (m *JobManager) ListJobs(ctx context.Context) ([]models.IngestionJob, error) {
	return m.store.ListJobs(ctx)
}

func (m *JobManager) transition(ctx context.Context, id string, next models.JobStatus, fn func(*models.IngestionJob)) (models.IngestionJob, error) {
	return m.store.UpdateJob(ctx, id, func(j *models.IngestionJob) error {
		if !j.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
		}
		j.Status = next
		if fn != nil {
			fn(j)
		}
		return nil
	})
}

// SetRunning moves a PENDING job to IN_PROGRESS and resets its progress.
func (m *JobManager) SetRunning(ctx context.Context, id string) error {
	_, err := m.transition(ctx, id, models.JobStatusInProgress, func(j *models.IngestionJob) {
		j.Progress = models.NewProgress(models.ProgressStage, models.StageInitializing)
	})
	return err
}

// SetStage records the current stage on a running job. Stage labels never
// change the status.
func (m *JobManager) SetStage(ctx context.Context, id, stage string, kv ...any) error {
	_, err := m.store.UpdateJob(ctx, id, func(j *models.IngestionJob) error {
		if j.Status != models.JobStatusInProgress {
			return fmt.Errorf("%w: stage update on %s job", ErrInvalidTransition, j.Status)
		}
		j.Progress.Set(models.ProgressStage, stage)
		for i := 0; i+1 < len(kv); i += 2 {
			if k, ok := kv[i].(string); ok {
				j.Progress.Set(k, kv[i+1])
			}
		}
		return nil
	})
	return err
}

// Complete finalizes a running job with its document count and final progress.
func (m *JobManager) Complete(ctx context.Context, id string, documents int, progress models.Progress) error {
	job, err := m.transition(ctx, id, models.JobStatusCompleted, func(j *models.IngestionJob) {
		now := m.now().UTC()
		j.CompletedAt = &now
		j.DocumentsProcessed = documents
		j.ErrorMessage = nil
		j.Progress = progress.Clone()
	})
	if err != nil {
		return err
	}
	m.logger.Info("job completed", "job_id", id, "repo_url", job.RepoURL, "documents", documents)
	return nil
}

// Fail finalizes a pending or running job with cause. The failed stage is
// taken from a StageError in cause, or else from the job's progress.
func (m *JobManager) Fail(ctx context.Context, id string, cause error) error {
	msg := cause.Error()
	job, err := m.transition(ctx, id, models.JobStatusFailed, func(j *models.IngestionJob) {
		now := m.now().UTC()
		failedStage := j.Stage()
		var se *StageError
		if errors.As(cause, &se) {
			failedStage = se.Stage
		}
		j.CompletedAt = &now
		j.ErrorMessage = &msg
		j.Progress = models.NewProgress(
			models.ProgressStage, models.StageFailed,
			models.ProgressError, msg,
			"failed_stage", failedStage,
		)
	})
	if err != nil {
		return err
	}
	m.logger.Error("job failed", "job_id", id, "repo_url", job.RepoURL, "error", cause)
	return nil
}
