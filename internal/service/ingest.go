package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/repoingest/internal/metrics"
	"github.com/raphaelgruber/repoingest/internal/models"
	"github.com/raphaelgruber/repoingest/internal/parser"
)

// RepositorySource clones repositories and extracts raw entities.
type RepositorySource interface {
	Clone(ctx context.Context, repoURL, dest string) (*models.WorkingCopy, error)
	ListCodeFiles(ctx context.Context, wc *models.WorkingCopy) ([]models.CodeFile, error)
	ListCommits(ctx context.Context, wc *models.WorkingCopy, max int) ([]models.Commit, error)
	ListIssues(ctx context.Context, repoURL string, max int) ([]models.Issue, error)
	ListPullRequests(ctx context.Context, repoURL string, max int) ([]models.PullRequest, error)
	// Release removes the working copy. It must tolerate partial clones
	// and repeated calls.
	Release(wc *models.WorkingCopy) error
}

// ObjectStore persists formatted documents.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	DeleteMany(ctx context.Context, keys []string) error
}

// KnowledgeIndex re-indexes the object store. An empty sync ID means the
// index did not report one.
type KnowledgeIndex interface {
	StartSync(ctx context.Context) (string, error)
}

// Default orchestration settings.
const (
	DefaultStageTimeout      = 10 * time.Minute
	DefaultUploadConcurrency = 8
	DefaultWorkerPoolSize    = 4
	DefaultQueueSize         = 32
	DefaultKeyPrefix         = "repositories"
)

// IngestService runs ingestion jobs on a bounded worker pool.
type IngestService struct {
	jobs      *JobManager
	source    RepositorySource
	objects   ObjectStore
	index     KnowledgeIndex
	formatter *Formatter
	metrics   *metrics.Collector
	logger    *slog.Logger
	pool      *ants.Pool

	workDir           string
	chunking          models.ChunkingConfig
	registry          *parser.Registry
	stageTimeout      time.Duration
	uploadConcurrency int
	poolSize          int
	queueSize         int
	replaceExisting   bool
	keyPrefix         string

	base       context.Context
	shutdown   context.CancelFunc
	running    sync.WaitGroup
	queue      chan queuedJob
	dispatched chan struct{}
	publish    repoLocks

	mu      sync.Mutex
	closed  bool
	cancels map[string]context.CancelFunc
	// Run prefixes whose documents are still being uploaded or published.
	active map[string]struct{}
}

type queuedJob struct {
	ctx context.Context
	id  string
	req models.IngestRequest
}

// Option configures an IngestService.
type Option func(*IngestService) error

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *IngestService) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics records stage timings on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *IngestService) error {
		s.metrics = c
		return nil
	}
}

// WithWorkDir sets the parent directory for working copies.
// Default is the system temp directory.
func WithWorkDir(dir string) Option {
	return func(s *IngestService) error {
		if dir == "" {
			return fmt.Errorf("%w: empty work dir", ErrInvalidRequest)
		}
		s.workDir = dir
		return nil
	}
}

// WithChunking sets chunk size and overlap for code files.
func WithChunking(cfg models.ChunkingConfig) Option {
	return func(s *IngestService) error {
		if cfg.MaxSize <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.MaxSize {
			return fmt.Errorf("%w: chunking max=%d overlap=%d", ErrInvalidRequest, cfg.MaxSize, cfg.Overlap)
		}
		s.chunking = cfg
		return nil
	}
}

// WithRegistry replaces the boundary matcher registry.
func WithRegistry(r *parser.Registry) Option {
	return func(s *IngestService) error {
		s.registry = r
		return nil
	}
}

// WithStageTimeout bounds every collaborator call.
func WithStageTimeout(d time.Duration) Option {
	return func(s *IngestService) error {
		if d > 0 {
			s.stageTimeout = d
		}
		return nil
	}
}

// WithUploadConcurrency bounds concurrent document uploads per job.
func WithUploadConcurrency(n int) Option {
	return func(s *IngestService) error {
		if n > 0 {
			s.uploadConcurrency = n
		}
		return nil
	}
}

// WithPoolSize sets how many jobs may run at once.
func WithPoolSize(n int) Option {
	return func(s *IngestService) error {
		if n < 1 {
			n = 1
		}
		s.poolSize = n
		return nil
	}
}

// WithQueueSize sets how many submitted jobs may wait for a free worker.
// Zero leaves room only for the job being handed to the pool.
func WithQueueSize(n int) Option {
	return func(s *IngestService) error {
		if n < 0 {
			n = 0
		}
		s.queueSize = n
		return nil
	}
}

// WithReplaceExisting controls whether documents from earlier runs of the
// same repository are deleted after a successful upload. Default true.
func WithReplaceExisting(replace bool) Option {
	return func(s *IngestService) error {
		s.replaceExisting = replace
		return nil
	}
}

// WithKeyPrefix sets the object key prefix. Default "repositories".
func WithKeyPrefix(prefix string) Option {
	return func(s *IngestService) error {
		s.keyPrefix = prefix
		return nil
	}
}

// NewIngestService creates an ingestion service. Call Shutdown to release
// the worker pool.
func NewIngestService(jobs *JobManager, source RepositorySource, objects ObjectStore, index KnowledgeIndex, opts ...Option) (*IngestService, error) {
	if jobs == nil || source == nil || objects == nil {
		return nil, fmt.Errorf("%w: job manager, source and object store are required", ErrInvalidRequest)
	}

	s := &IngestService{
		jobs:              jobs,
		source:            source,
		objects:           objects,
		index:             index,
		logger:            slog.Default(),
		workDir:           os.TempDir(),
		chunking:          models.DefaultChunkingConfig(),
		stageTimeout:      DefaultStageTimeout,
		uploadConcurrency: DefaultUploadConcurrency,
		poolSize:          DefaultWorkerPoolSize,
		queueSize:         DefaultQueueSize,
		replaceExisting:   true,
		keyPrefix:         DefaultKeyPrefix,
		cancels:           make(map[string]context.CancelFunc),
		active:            make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	// The pool blocks when busy; Submit stays non-blocking through the queue.
	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	s.pool = pool
	s.formatter = NewFormatter(parser.NewChunker(s.registry), s.chunking)
	s.base, s.shutdown = context.WithCancel(context.Background())
	s.queue = make(chan queuedJob, s.queueSize)
	s.dispatched = make(chan struct{})
	go s.dispatch()
	return s, nil
}

// Submit creates a PENDING job and queues it for the worker pool. It returns
// as soon as the job is queued; completion is observed through GetStatus.
//
// At most WithPoolSize jobs run at once. WithQueueSize more wait in line,
// plus one the dispatcher is handing to the pool. Beyond that the job is
// recorded as FAILED and Submit returns its ID with ErrPoolOverloaded.
func (s *IngestService) Submit(ctx context.Context, req models.IngestRequest) (string, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if s.base.Err() != nil {
		return "", fmt.Errorf("%w: service is shutting down", ErrInvalidRequest)
	}

	job, err := s.jobs.CreateJob(ctx, req.RepoURL)
	if err != nil {
		return "", err
	}
	s.metrics.JobSubmitted()

	jobCtx, cancel := context.WithCancel(s.base)
	queued := false
	s.mu.Lock()
	closed := s.closed
	if !closed {
		// Registered before the send so the dispatcher never sees an
		// untracked job.
		s.cancels[job.ID] = cancel
		s.running.Add(1)
		select {
		case s.queue <- queuedJob{ctx: jobCtx, id: job.ID, req: req}:
			queued = true
		default:
			delete(s.cancels, job.ID)
			s.running.Done()
		}
	}
	s.mu.Unlock()

	if !queued {
		cancel()
		cause := fmt.Errorf("%w: %d running, %d queued", ErrPoolOverloaded, s.pool.Running(), len(s.queue))
		if closed {
			cause = fmt.Errorf("%w: service is shutting down", ErrInvalidRequest)
		}
		s.reject(ctx, job.ID, cause)
		return job.ID, cause
	}

	s.logger.Info("job submitted", "job_id", job.ID, "repo_url", req.RepoURL)
	return job.ID, nil
}

// dispatch feeds queued jobs to the pool until the queue is closed.
func (s *IngestService) dispatch() {
	defer close(s.dispatched)
	for qj := range s.queue {
		err := s.pool.Submit(func() {
			defer s.running.Done()
			s.run(qj.ctx, qj.id, qj.req)
		})
		if err != nil {
			s.forget(qj.id)
			s.reject(qj.ctx, qj.id, fmt.Errorf("%w: %w", ErrPoolOverloaded, err))
			s.running.Done()
		}
	}
}

func (s *IngestService) reject(ctx context.Context, jobID string, cause error) {
	if err := s.jobs.Fail(context.WithoutCancel(ctx), jobID, cause); err != nil {
		s.logger.Error("failed to record rejected job", "job_id", jobID, "error", err)
	}
	s.metrics.JobFinished(false, 0)
}

// Cancel asks a running job to stop at its next stage boundary. It reports
// whether the job was still running.
func (s *IngestService) Cancel(jobID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[jobID]
	s.mu.Unlock()
	if ok {
		s.logger.Info("cancelling job", "job_id", jobID)
		cancel()
	}
	return ok
}

// GetStatus returns a snapshot of the job.
func (s *IngestService) GetStatus(ctx context.Context, jobID string) (models.IngestionJob, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// ListJobs returns all jobs, most recent first.
func (s *IngestService) ListJobs(ctx context.Context) ([]models.IngestionJob, error) {
	return s.jobs.ListJobs(ctx)
}

// ListRepositories returns every successfully ingested repository.
func (s *IngestService) ListRepositories(ctx context.Context) ([]models.RepositoryRecord, error) {
	return s.jobs.Store().ListRepositories(ctx)
}

// Metrics returns the collector, which may be nil.
func (s *IngestService) Metrics() *metrics.Collector {
	return s.metrics
}

// Shutdown cancels running and queued jobs, waits for them to record their
// final state and releases the pool.
func (s *IngestService) Shutdown(ctx context.Context) error {
	s.shutdown()
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		<-s.dispatched
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
	s.pool.Release()
	return err
}

func (s *IngestService) forget(jobID string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
		delete(s.cancels, jobID)
	}
	s.mu.Unlock()
}

// ingestResult carries what a successful run produced.
type ingestResult struct {
	stats         FormatStats
	syncID        string
	lastCommitSHA *string
	repoName      string
}

func (s *IngestService) run(ctx context.Context, jobID string, req models.IngestRequest) {
	defer s.forget(jobID)
	// Terminal writes must land even after cancellation.
	storeCtx := context.WithoutCancel(ctx)
	logger := s.logger.With("job_id", jobID, "repo_url", req.RepoURL)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
			s.finishFailed(storeCtx, jobID, fmt.Errorf("internal error: %v", r), logger)
		}
	}()

	if err := s.jobs.SetRunning(storeCtx, jobID); err != nil {
		logger.Error("failed to start job", "error", err)
		return
	}

	res, err := s.execute(ctx, jobID, req, logger)
	s.metrics.RecordTiming(metrics.OpPipeline, time.Since(start), err)
	if err != nil {
		s.finishFailed(storeCtx, jobID, err, logger)
		return
	}

	rec := models.RepositoryRecord{
		RepoURL:       req.RepoURL,
		RepoName:      res.repoName,
		IngestedAt:    time.Now().UTC(),
		DocumentCount: res.stats.Documents,
		LastCommitSHA: res.lastCommitSHA,
	}
	if err := s.jobs.Store().PutRepository(storeCtx, rec); err != nil {
		s.finishFailed(storeCtx, jobID, stageError(models.StageCompleted, ErrStore, err), logger)
		return
	}

	final := models.NewProgress(
		models.ProgressStage, models.StageCompleted,
		models.ProgressTotalDocuments, res.stats.Documents,
		models.ProgressCodeFiles, res.stats.CodeFiles,
		models.ProgressCommits, res.stats.Commits,
		models.ProgressIssues, res.stats.Issues,
		models.ProgressPullRequests, res.stats.PullRequests,
		models.ProgressFormattingFailures, res.stats.Failed,
	)
	if res.syncID != "" {
		final.Set(models.ProgressSyncJobID, res.syncID)
	}
	if err := s.jobs.Complete(storeCtx, jobID, res.stats.Documents, final); err != nil {
		logger.Error("failed to complete job", "error", err)
		return
	}
	s.metrics.JobFinished(true, res.stats.Documents)
}

func (s *IngestService) finishFailed(ctx context.Context, jobID string, cause error, logger *slog.Logger) {
	if err := s.jobs.Fail(ctx, jobID, cause); err != nil {
		logger.Error("failed to record job failure", "error", err, "cause", cause)
		return
	}
	s.metrics.JobFinished(false, 0)
}

// execute runs the stages in order. Fatal errors are returned; non-fatal
// ones are logged and replaced by empty results.
func (s *IngestService) execute(ctx context.Context, jobID string, req models.IngestRequest, logger *slog.Logger) (res ingestResult, err error) {
	ref, err := models.ParseRepoURL(req.RepoURL)
	if err != nil {
		return res, stageError(models.StageInitializing, ErrInvalidRequest, err)
	}
	res.repoName = ref.FullName()

	if err := s.enter(ctx, jobID, models.StageCloning, logger); err != nil {
		return res, err
	}
	dest := filepath.Join(s.workDir, jobID)
	var wc *models.WorkingCopy
	err = s.call(ctx, metrics.OpClone, func(ctx context.Context) error {
		var cerr error
		wc, cerr = s.source.Clone(ctx, req.RepoURL, dest)
		return cerr
	})
	if err != nil {
		s.release(&models.WorkingCopy{RepoURL: req.RepoURL, Dir: dest}, logger)
		return res, stageError(models.StageCloning, ErrClone, err)
	}
	defer func() {
		s.stage(ctx, jobID, models.StageCleaningUp, logger)
		s.release(wc, logger)
	}()

	// Code files are the one extraction a job cannot do without.
	if err := s.enter(ctx, jobID, models.StageExtractingCode, logger); err != nil {
		return res, err
	}
	var files []models.CodeFile
	err = s.call(ctx, metrics.OpExtractCode, func(ctx context.Context) error {
		var lerr error
		files, lerr = s.source.ListCodeFiles(ctx, wc)
		return lerr
	})
	if err != nil {
		return res, stageError(models.StageExtractingCode, ErrExtraction, err)
	}
	logger.Info("extracted code files", "count", len(files))

	var commits []models.Commit
	if req.IncludeCommits {
		if err := s.enter(ctx, jobID, models.StageExtractingCommits, logger, models.ProgressCodeFiles, len(files)); err != nil {
			return res, err
		}
		commits = extract(ctx, s, metrics.OpExtractCommits, models.StageExtractingCommits, logger, func(ctx context.Context) ([]models.Commit, error) {
			return s.source.ListCommits(ctx, wc, req.MaxCommits)
		})
	}

	var issues []models.Issue
	if req.IncludeIssues {
		if err := s.enter(ctx, jobID, models.StageExtractingIssues, logger, models.ProgressCommits, len(commits)); err != nil {
			return res, err
		}
		issues = extract(ctx, s, metrics.OpExtractIssues, models.StageExtractingIssues, logger, func(ctx context.Context) ([]models.Issue, error) {
			return s.source.ListIssues(ctx, req.RepoURL, req.MaxIssues)
		})
	}

	var prs []models.PullRequest
	if req.IncludePRs {
		if err := s.enter(ctx, jobID, models.StageExtractingPRs, logger, models.ProgressIssues, len(issues)); err != nil {
			return res, err
		}
		prs = extract(ctx, s, metrics.OpExtractPRs, models.StageExtractingPRs, logger, func(ctx context.Context) ([]models.PullRequest, error) {
			return s.source.ListPullRequests(ctx, req.RepoURL, req.MaxPRs)
		})
	}

	if err := s.enter(ctx, jobID, models.StageProcessingDocuments, logger, models.ProgressPullRequests, len(prs)); err != nil {
		return res, err
	}
	entities := make([]models.Entity, 0, len(files)+len(commits)+len(issues)+len(prs))
	for _, f := range files {
		entities = append(entities, f)
	}
	for _, c := range commits {
		entities = append(entities, c)
	}
	for _, is := range issues {
		entities = append(entities, is)
	}
	for _, pr := range prs {
		entities = append(entities, pr)
	}
	formatStart := time.Now()
	docs, stats := s.formatter.FormatBatch(entities, req.RepoURL, res.repoName, logger)
	s.metrics.RecordTiming(metrics.OpFormat, time.Since(formatStart), nil)
	res.stats = stats
	logger.Info("formatted documents", "documents", stats.Documents, "failed", stats.Failed)

	if err := s.enter(ctx, jobID, models.StageUploading, logger, models.ProgressTotalDocuments, len(docs)); err != nil {
		return res, err
	}
	// Each run writes below its own job ID so concurrent runs of the same
	// repository never share keys.
	repoPrefix := path.Join(s.keyPrefix, ref.Host, ref.Owner, ref.Name, "documents") + "/"
	runPrefix := repoPrefix + jobID + "/"
	s.track(runPrefix)
	defer s.untrack(runPrefix)

	uploadStart := time.Now()
	err = s.upload(ctx, runPrefix, docs)
	s.metrics.RecordTiming(metrics.OpUpload, time.Since(uploadStart), err)
	if err != nil {
		s.discard(ctx, runPrefix, logger)
		return res, stageError(models.StageUploading, ErrStore, err)
	}
	if s.replaceExisting {
		s.purgeStale(ctx, repoPrefix, runPrefix, logger)
	}

	if s.index != nil {
		if err := s.enter(ctx, jobID, models.StageSyncingIndex, logger); err != nil {
			return res, err
		}
		err = s.call(ctx, metrics.OpSync, func(ctx context.Context) error {
			var serr error
			res.syncID, serr = s.index.StartSync(ctx)
			return serr
		})
		if err != nil {
			logger.Warn("index sync not started", "error", stageError(models.StageSyncingIndex, ErrSyncTrigger, err))
		}
	}

	if len(commits) > 0 {
		sha := commits[0].SHA
		res.lastCommitSHA = &sha
	}
	return res, nil
}

// extract runs a non-fatal extraction stage.
func extract[T any](ctx context.Context, s *IngestService, op, stage string, logger *slog.Logger, fn func(context.Context) ([]T, error)) []T {
	var out []T
	err := s.call(ctx, op, func(ctx context.Context) error {
		var eerr error
		out, eerr = fn(ctx)
		return eerr
	})
	if err != nil {
		logger.Warn("extraction failed, continuing without it", "error", stageError(stage, ErrExtraction, err))
		return nil
	}
	logger.Info("extracted", "stage", stage, "count", len(out))
	return out
}

// enter checks for cancellation and records the next stage.
func (s *IngestService) enter(ctx context.Context, jobID, stage string, logger *slog.Logger, kv ...any) error {
	if err := ctx.Err(); err != nil {
		return stageError(stage, ErrCancelled, err)
	}
	s.stage(ctx, jobID, stage, logger, kv...)
	return nil
}

func (s *IngestService) stage(ctx context.Context, jobID, stage string, logger *slog.Logger, kv ...any) {
	if err := s.jobs.SetStage(context.WithoutCancel(ctx), jobID, stage, kv...); err != nil {
		logger.Warn("failed to record stage", "stage", stage, "error", err)
		return
	}
	logger.Debug("stage", "stage", stage)
}

// call runs fn under the per-call timeout and records its timing.
func (s *IngestService) call(ctx context.Context, op string, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()
	return s.metrics.Time(op, func() error { return fn(cctx) })
}

func (s *IngestService) release(wc *models.WorkingCopy, logger *slog.Logger) {
	if wc == nil {
		return
	}
	start := time.Now()
	err := s.source.Release(wc)
	s.metrics.RecordTiming(metrics.OpRelease, time.Since(start), err)
	if err != nil {
		logger.Warn("failed to release working copy", "dir", wc.Dir, "error", err)
	}
}

// upload writes every document under prefix with bounded concurrency.
func (s *IngestService) upload(ctx context.Context, prefix string, docs []models.Document) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadConcurrency)

	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		key := prefix + uuid.NewString() + ".json"
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.stageTimeout)
			defer cancel()
			if err := s.objects.Put(cctx, key, body); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *IngestService) track(runPrefix string) {
	s.mu.Lock()
	s.active[runPrefix] = struct{}{}
	s.mu.Unlock()
}

func (s *IngestService) untrack(runPrefix string) {
	s.mu.Lock()
	delete(s.active, runPrefix)
	s.mu.Unlock()
}

func (s *IngestService) isActive(runPrefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[runPrefix]
	return ok
}

// runOf returns the run prefix a key under repoPrefix belongs to, or ""
// for keys written without one.
func runOf(repoPrefix, key string) string {
	rest := strings.TrimPrefix(key, repoPrefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return repoPrefix + rest[:i+1]
	}
	return ""
}

// purgeStale deletes documents under repoPrefix left by finished runs.
// Runs still uploading are skipped, and publishing is serialized per
// repository, so the last run to publish keeps its documents.
// Failures leave stale documents behind but never fail the job.
func (s *IngestService) purgeStale(ctx context.Context, repoPrefix, runPrefix string, logger *slog.Logger) {
	unlock := s.publish.lock(repoPrefix)
	defer unlock()
	// Retired before unlocking so the next publisher may remove this run.
	defer s.untrack(runPrefix)

	cctx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()

	keys, err := s.objects.List(cctx, repoPrefix)
	if err != nil {
		logger.Warn("failed to list previous documents", "prefix", repoPrefix, "error", err)
		return
	}
	var stale []string
	for _, k := range keys {
		run := runOf(repoPrefix, k)
		if run == runPrefix || (run != "" && s.isActive(run)) {
			continue
		}
		stale = append(stale, k)
	}
	if len(stale) == 0 {
		return
	}
	if err := s.objects.DeleteMany(cctx, stale); err != nil {
		logger.Warn("failed to delete previous documents", "count", len(stale), "error", err)
		return
	}
	logger.Info("deleted previous documents", "count", len(stale))
}

// discard removes what a failed upload managed to write.
func (s *IngestService) discard(ctx context.Context, runPrefix string, logger *slog.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stageTimeout)
	defer cancel()

	keys, err := s.objects.List(cctx, runPrefix)
	if err == nil && len(keys) > 0 {
		err = s.objects.DeleteMany(cctx, keys)
	}
	if err != nil {
		logger.Warn("failed to remove partial upload", "prefix", runPrefix, "error", err)
	}
}

// repoLocks hands out one mutex per repository prefix.
type repoLocks struct {
	mu    sync.Mutex
	locks map[string]*repoLock
}

type repoLock struct {
	mu   sync.Mutex
	refs int
}

func (l *repoLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*repoLock)
	}
	rl, ok := l.locks[key]
	if !ok {
		rl = &repoLock{}
		l.locks[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
