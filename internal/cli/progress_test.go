package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/repoingest/internal/models"
)

func TestStageFraction(t *testing.T) {
	assert.Zero(t, stageFraction(models.StageInitializing))
	assert.Equal(t, 1.0, stageFraction(models.StageCompleted))
	assert.Zero(t, stageFraction("unknown"))
	assert.Less(t, stageFraction(models.StageCloning), stageFraction(models.StageUploading))
}

func TestSummaryAndCounts(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	done := created.Add(90 * time.Second)
	job := &models.IngestionJob{
		ID:                 "job00001",
		Status:             models.JobStatusCompleted,
		RepoURL:            "https://github.com/acme/widgets",
		CreatedAt:          created,
		CompletedAt:        &done,
		DocumentsProcessed: 16,
		Progress: models.NewProgress(
			models.ProgressStage, models.StageCompleted,
			models.ProgressTotalDocuments, 16,
			models.ProgressCodeFiles, 12,
		),
	}

	out := summary(job)
	assert.Contains(t, out, "Documents:   16")
	assert.Contains(t, out, "code_files:  12")
	assert.Contains(t, out, "Duration:    1m30s")
	assert.NotContains(t, out, "stage:")

	assert.Equal(t, "code_files=12 total_documents=16", countsLine(job))
}

func TestJobError(t *testing.T) {
	msg := "cloning: clone failed: exit status 128"
	err := jobError(&models.IngestionJob{ErrorMessage: &msg})
	assert.EqualError(t, err, msg)
	assert.Error(t, jobError(&models.IngestionJob{}))
}

func TestProgressModel_Updates(t *testing.T) {
	m := newProgressModel("job00001")

	running := &models.IngestionJob{
		ID:       "job00001",
		Status:   models.JobStatusInProgress,
		Progress: models.NewProgress(models.ProgressStage, models.StageUploading),
	}
	next, cmd := m.Update(jobUpdateMsg{job: running})
	m = next.(progressModel)
	assert.Nil(t, cmd)
	assert.False(t, m.done)
	assert.Contains(t, m.render(), models.StageUploading)

	msg := "uploading: document upload failed: denied"
	failed := &models.IngestionJob{ID: "job00001", Status: models.JobStatusFailed, ErrorMessage: &msg}
	next, cmd = m.Update(jobUpdateMsg{job: failed})
	m = next.(progressModel)
	require.NotNil(t, cmd)
	assert.True(t, m.done)
	assert.EqualError(t, m.err, msg)
}

func TestProgressModel_WatchError(t *testing.T) {
	next, cmd := newProgressModel("job00001").Update(jobUpdateMsg{err: errors.New("connection reset")})
	m := next.(progressModel)
	require.NotNil(t, cmd)
	assert.True(t, m.done)
	assert.ErrorContains(t, m.err, "connection reset")
}
