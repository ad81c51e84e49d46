package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/repoingest/internal/models"
)

func newJob(id, url string, created time.Time) models.IngestionJob {
	return models.IngestionJob{
		ID:        id,
		Status:    models.JobStatusPending,
		RepoURL:   url,
		CreatedAt: created,
		Progress:  models.NewProgress(models.ProgressStage, models.StageInitializing),
	}
}

func TestMemory_JobLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.CreateJob(ctx, newJob("a", "https://github.com/acme/a", time.Now())))
	err := s.CreateJob(ctx, newJob("a", "https://github.com/acme/a", time.Now()))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	updated, err := s.UpdateJob(ctx, "a", func(j *models.IngestionJob) error {
		j.Status = models.JobStatusInProgress
		j.Progress.Set(models.ProgressStage, models.StageCloning)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, updated.Status)

	got, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StageCloning, got.Stage())

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.UpdateJob(ctx, "missing", func(*models.IngestionJob) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_UpdateJobErrorLeavesJobUnchanged(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.CreateJob(ctx, newJob("a", "u", time.Now())))

	boom := errors.New("boom")
	_, err := s.UpdateJob(ctx, "a", func(j *models.IngestionJob) error {
		j.Status = models.JobStatusFailed
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestMemory_ReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.CreateJob(ctx, newJob("a", "u", time.Now())))

	got, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	got.Progress.Set(models.ProgressStage, "tampered")

	again, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StageInitializing, again.Stage())
}

func TestMemory_ListJobsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateJob(ctx, newJob("old", "u", base)))
	require.NoError(t, s.CreateJob(ctx, newJob("new", "u", base.Add(time.Hour))))

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "new", jobs[0].ID)
	assert.Equal(t, "old", jobs[1].ID)
}

func TestMemory_RepositoryLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.PutRepository(ctx, models.RepositoryRecord{RepoURL: "https://github.com/acme/w.git", DocumentCount: 10}))
	require.NoError(t, s.PutRepository(ctx, models.RepositoryRecord{RepoURL: "https://github.com/acme/w", DocumentCount: 25}))

	recs, err := s.ListRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 25, recs[0].DocumentCount)
	assert.Equal(t, "https://github.com/acme/w", recs[0].RepoURL)

	rec, err := s.GetRepository(ctx, "git@github.com:acme/w.git")
	require.NoError(t, err)
	assert.Equal(t, 25, rec.DocumentCount)
}

func TestMemory_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", i)
			assert.NoError(t, s.CreateJob(ctx, newJob(id, "u", time.Now())))
			_, err := s.UpdateJob(ctx, id, func(j *models.IngestionJob) error {
				j.DocumentsProcessed = i
				return nil
			})
			assert.NoError(t, err)
			assert.NoError(t, s.PutRepository(ctx, models.RepositoryRecord{RepoURL: "https://h/o/shared", DocumentCount: i}))
		}(i)
	}
	wg.Wait()

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 50)

	recs, err := s.ListRepositories(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
