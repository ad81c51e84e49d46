package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/raphaelgruber/repoingest/internal/models"
)

const (
	repoKeyPrefix = "repo:"
	jobKeyPrefix  = "job:"
)

// BadgerSnapshotter persists snapshots in an embedded BadgerDB.
type BadgerSnapshotter struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ Snapshotter = (*BadgerSnapshotter)(nil)

// badgerLogger adapts slog.Logger to the badger.Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (bl *badgerLogger) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBadger opens a snapshot database at dir, creating it if needed.
// An empty dir opens an in-memory database.
func OpenBadger(dir string, logger *slog.Logger) (*BadgerSnapshotter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerSnapshotter{db: db, logger: logger}, nil
}

func (b *BadgerSnapshotter) SaveRepository(_ context.Context, rec models.RepositoryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal repository: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(repoKeyPrefix+rec.RepoURL), data)
	})
}

func (b *BadgerSnapshotter) LoadRepositories(_ context.Context) ([]models.RepositoryRecord, error) {
	var recs []models.RepositoryRecord
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(repoKeyPrefix)
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				var rec models.RepositoryRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decode %s: %w", iter.Item().Key(), err)
				}
				recs = append(recs, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return recs, err
}

func (b *BadgerSnapshotter) SaveJobRef(_ context.Context, jobID, repoURL string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(jobKeyPrefix+jobID), []byte(repoURL))
	})
}

func (b *BadgerSnapshotter) LookupJobRef(_ context.Context, jobID string) (string, error) {
	var repoURL string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(jobKeyPrefix + jobID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		repoURL = string(val)
		return err
	})
	return repoURL, err
}

// Close closes the database.
func (b *BadgerSnapshotter) Close(_ context.Context) error {
	return b.db.Close()
}
