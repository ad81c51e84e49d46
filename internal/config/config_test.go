package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REPOINGEST_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, 4, cfg.WorkerPoolSize)
	assert.Equal(t, 32, cfg.QueueSize)
	assert.Equal(t, 10*time.Minute, cfg.StageTimeout)
	assert.True(t, cfg.ReplaceExisting)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repoingest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_backend: badger
s3_bucket: docs
worker_pool_size: 2
stage_timeout: 90s
replace_existing: false
log_level: debug
`), 0o644))

	t.Setenv("REPOINGEST_CONFIG", path)
	t.Setenv("REPOINGEST_WORKERS", "6")
	t.Setenv("REPOINGEST_S3_PATH_STYLE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreBadger, cfg.StoreBackend)
	assert.Equal(t, "docs", cfg.S3Bucket)
	assert.Equal(t, 6, cfg.WorkerPoolSize, "env wins over file")
	assert.Equal(t, 90*time.Second, cfg.StageTimeout)
	assert.False(t, cfg.ReplaceExisting)
	assert.True(t, cfg.S3UsePathStyle)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoad_InvalidEnvKeepsDefault(t *testing.T) {
	t.Setenv("REPOINGEST_CONFIG", "")
	t.Setenv("REPOINGEST_UPLOAD_CONCURRENCY", "lots")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.UploadConcurrency)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(c *Config) { c.StoreBackend = "redis" }},
		{"zero workers", func(c *Config) { c.WorkerPoolSize = 0 }},
		{"negative queue", func(c *Config) { c.QueueSize = -1 }},
		{"overlap too large", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"knowledge base without data source", func(c *Config) { c.KnowledgeBaseID = "kb" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Defaults().Validate())
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("job started", "job_id", "abc12345")

	assert.Contains(t, stderr.String(), "job_id=abc12345")
	assert.Contains(t, file.String(), `"job_id":"abc12345"`)
	assert.NotContains(t, stderr.String(), "hidden")
}

func TestSetupLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "repoingest.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("ready")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"ready"`)
}

func TestSetupLogger_EmptyFileIsStderrOnly(t *testing.T) {
	logger, cleanup := SetupLogger("", slog.LevelInfo)
	assert.NotNil(t, logger)
	assert.NoError(t, cleanup())
}
