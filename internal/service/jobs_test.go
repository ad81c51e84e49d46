package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/repoingest/internal/models"
	"github.com/raphaelgruber/repoingest/internal/store"
)

func TestJobManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewJobManager(store.NewMemory(), discardLogger())

	job, err := m.CreateJob(ctx, testRepoURL)
	require.NoError(t, err)
	assert.Len(t, job.ID, 8)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, models.StageInitializing, job.Stage())
	assert.Nil(t, job.CompletedAt)

	// Stage updates need a running job.
	assert.ErrorIs(t, m.SetStage(ctx, job.ID, models.StageCloning), ErrInvalidTransition)

	require.NoError(t, m.SetRunning(ctx, job.ID))
	require.NoError(t, m.SetStage(ctx, job.ID, models.StageExtractingCommits, models.ProgressCodeFiles, 3))

	got, err := m.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, got.Status)
	assert.Equal(t, models.StageExtractingCommits, got.Stage())
	assert.Equal(t, 3, got.Progress.Get(models.ProgressCodeFiles))

	final := models.NewProgress(models.ProgressStage, models.StageCompleted, models.ProgressTotalDocuments, 5)
	require.NoError(t, m.Complete(ctx, job.ID, 5, final))

	got, err = m.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 5, got.DocumentsProcessed)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.ErrorMessage)

	// Terminal states are immutable.
	assert.ErrorIs(t, m.Fail(ctx, job.ID, errors.New("late")), ErrInvalidTransition)
	assert.ErrorIs(t, m.SetRunning(ctx, job.ID), ErrInvalidTransition)
	assert.ErrorIs(t, m.SetStage(ctx, job.ID, models.StageUploading), ErrInvalidTransition)

	got, err = m.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, models.StageCompleted, got.Stage())
}

func TestJobManager_FailRecordsStage(t *testing.T) {
	ctx := context.Background()
	m := NewJobManager(store.NewMemory(), discardLogger())

	job, err := m.CreateJob(ctx, testRepoURL)
	require.NoError(t, err)
	require.NoError(t, m.SetRunning(ctx, job.ID))
	require.NoError(t, m.SetStage(ctx, job.ID, models.StageCleaningUp))

	cause := stageError(models.StageUploading, ErrStore, errors.New("denied"))
	require.NoError(t, m.Fail(ctx, job.ID, cause))

	got, err := m.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "uploading: document upload failed: denied", *got.ErrorMessage)
	assert.Equal(t, []string{models.ProgressStage, models.ProgressError, "failed_stage"}, got.Progress.Keys())
	assert.Equal(t, models.StageUploading, got.Progress.Get("failed_stage"))
	assert.Equal(t, models.StageFailed, got.Stage())
}

func TestJobManager_FailPending(t *testing.T) {
	ctx := context.Background()
	m := NewJobManager(store.NewMemory(), discardLogger())

	job, err := m.CreateJob(ctx, testRepoURL)
	require.NoError(t, err)
	require.NoError(t, m.Fail(ctx, job.ID, ErrPoolOverloaded))

	got, err := m.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.StageInitializing, got.Progress.Get("failed_stage"))
}

func TestJobManager_UnknownJob(t *testing.T) {
	m := NewJobManager(store.NewMemory(), discardLogger())
	_, err := m.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, m.SetRunning(context.Background(), "missing"), store.ErrNotFound)
}

func TestStageError_Unwrap(t *testing.T) {
	cause := errors.New("exit status 128")
	err := stageError(models.StageCloning, ErrClone, cause)

	assert.ErrorIs(t, err, ErrClone)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrStore)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.StageCloning, se.Stage)
}
