// Package app wires configuration into a running ingestion service.
// It serves as dependency injection for the server binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/raphaelgruber/repoingest/internal/config"
	"github.com/raphaelgruber/repoingest/internal/db"
	"github.com/raphaelgruber/repoingest/internal/knowledge"
	"github.com/raphaelgruber/repoingest/internal/metrics"
	"github.com/raphaelgruber/repoingest/internal/models"
	"github.com/raphaelgruber/repoingest/internal/objectstore"
	"github.com/raphaelgruber/repoingest/internal/service"
	"github.com/raphaelgruber/repoingest/internal/source"
	"github.com/raphaelgruber/repoingest/internal/store"
)

// Index starts knowledge base syncs and reports on them.
type Index interface {
	StartSync(ctx context.Context) (string, error)
	SyncStatus(ctx context.Context, syncID string) (knowledge.SyncStatus, error)
}

// App holds the wired ingestion service and the resources it owns.
type App struct {
	Service *service.IngestService
	Index   Index
	Metrics *metrics.Collector

	logger  *slog.Logger
	closers []func(context.Context) error
}

// Build creates every component selected by cfg. On error, anything
// already opened is closed again.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Metrics: metrics.NewCollector(), logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	jobStore, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var awsCfg aws.Config
	if cfg.S3Bucket != "" || cfg.KnowledgeBaseID != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
	}

	var objects service.ObjectStore
	if cfg.S3Bucket != "" {
		objects, err = objectstore.NewS3(awsCfg, objectstore.S3Config{
			Bucket:       cfg.S3Bucket,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("object store ready", "backend", "s3", "bucket", cfg.S3Bucket)
	} else {
		objects = objectstore.NewMemory()
		logger.Warn("no S3 bucket configured, documents are kept in memory")
	}

	// A nil index skips the syncing stage entirely.
	var index service.KnowledgeIndex
	if cfg.KnowledgeBaseID != "" {
		bedrock, err := knowledge.NewBedrock(awsCfg, cfg.KnowledgeBaseID, cfg.DataSourceID, logger)
		if err != nil {
			return nil, err
		}
		a.Index = bedrock
		index = bedrock
	} else {
		a.Index = knowledge.Noop{}
	}

	git := source.NewGit(source.WithCloneDepth(cfg.CloneDepth), source.WithGitLogger(logger))
	gh := source.NewGitHub(source.GitHubConfig{
		BaseURL: cfg.GitHubAPIURL,
		Token:   cfg.GitHubToken,
		Logger:  logger,
	})

	svc, err := service.NewIngestService(
		service.NewJobManager(jobStore, logger),
		source.New(git, gh),
		objects,
		index,
		service.WithLogger(logger),
		service.WithMetrics(a.Metrics),
		service.WithWorkDir(cfg.WorkDir),
		service.WithChunking(models.ChunkingConfig{MaxSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}),
		service.WithStageTimeout(cfg.StageTimeout),
		service.WithUploadConcurrency(cfg.UploadConcurrency),
		service.WithPoolSize(cfg.WorkerPoolSize),
		service.WithQueueSize(cfg.QueueSize),
		service.WithReplaceExisting(cfg.ReplaceExisting),
		service.WithKeyPrefix(cfg.KeyPrefix),
	)
	if err != nil {
		return nil, err
	}
	a.Service = svc
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	var snap store.Snapshotter
	switch cfg.StoreBackend {
	case config.StoreMemory:
		a.logger.Info("job store ready", "backend", cfg.StoreBackend)
		return store.NewMemory(), nil

	case config.StoreBadger:
		b, err := store.OpenBadger(cfg.BadgerDir, a.logger)
		if err != nil {
			return nil, err
		}
		snap = b

	case config.StoreSurrealDB:
		client, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		snap = db.NewSnapshotter(client)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	p := store.NewPersistent(store.NewMemory(), snap, a.logger)
	a.closers = append(a.closers, p.Close)

	n, err := p.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore repositories: %w", err)
	}
	a.logger.Info("job store ready", "backend", cfg.StoreBackend, "repositories", n)
	return p, nil
}

// Close stops the service, waiting for running jobs until ctx expires,
// then closes the job store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Service != nil {
		errs = append(errs, a.Service.Shutdown(ctx))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
