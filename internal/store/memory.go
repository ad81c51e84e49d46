package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/raphaelgruber/repoingest/internal/models"
)

// Memory is an in-process Store guarded by a RWMutex.
type Memory struct {
	mu    sync.RWMutex
	jobs  map[string]*models.IngestionJob
	repos map[string]models.RepositoryRecord
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs:  make(map[string]*models.IngestionJob),
		repos: make(map[string]models.RepositoryRecord),
	}
}

func (m *Memory) CreateJob(_ context.Context, job models.IngestionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("job %s: %w", job.ID, ErrAlreadyExists)
	}
	cp := job.Clone()
	m.jobs[job.ID] = &cp
	return nil
}

func (m *Memory) GetJob(_ context.Context, id string) (models.IngestionJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.IngestionJob{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return job.Clone(), nil
}

func (m *Memory) UpdateJob(_ context.Context, id string, fn func(*models.IngestionJob) error) (models.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.IngestionJob{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	next := job.Clone()
	if err := fn(&next); err != nil {
		return job.Clone(), err
	}
	next.ID = id
	m.jobs[id] = &next
	return next.Clone(), nil
}

// ListJobs returns all jobs, most recent first.
func (m *Memory) ListJobs(_ context.Context) ([]models.IngestionJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]models.IngestionJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.Clone())
	}
	slices.SortFunc(jobs, func(a, b models.IngestionJob) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return jobs, nil
}

func (m *Memory) PutRepository(_ context.Context, rec models.RepositoryRecord) error {
	rec.RepoURL = models.NormalizeRepoURL(rec.RepoURL)
	m.mu.Lock()
	m.repos[rec.RepoURL] = cloneRecord(rec)
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetRepository(_ context.Context, repoURL string) (models.RepositoryRecord, error) {
	key := models.NormalizeRepoURL(repoURL)
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.repos[key]
	if !ok {
		return models.RepositoryRecord{}, fmt.Errorf("repository %s: %w", key, ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// ListRepositories returns all records ordered by URL.
func (m *Memory) ListRepositories(_ context.Context) ([]models.RepositoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]models.RepositoryRecord, 0, len(m.repos))
	for _, rec := range m.repos {
		recs = append(recs, cloneRecord(rec))
	}
	slices.SortFunc(recs, func(a, b models.RepositoryRecord) int {
		return strings.Compare(a.RepoURL, b.RepoURL)
	})
	return recs, nil
}

func cloneRecord(rec models.RepositoryRecord) models.RepositoryRecord {
	if rec.LastCommitSHA != nil {
		sha := *rec.LastCommitSHA
		rec.LastCommitSHA = &sha
	}
	return rec
}
