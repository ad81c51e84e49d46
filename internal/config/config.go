package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StoreBadger    = "badger"
	StoreSurrealDB = "surrealdb"
)

// LLM providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	ServerAddr string `yaml:"server_addr"`
	ServerURL  string `yaml:"server_url"`

	// Job store persistence
	StoreBackend string `yaml:"store_backend"`
	BadgerDir    string `yaml:"badger_dir"`

	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Repository source
	GitHubToken  string `yaml:"github_token"`
	GitHubAPIURL string `yaml:"github_api_url"`
	WorkDir      string `yaml:"work_dir"`
	CloneDepth   int    `yaml:"clone_depth"`

	// Object store and knowledge base. An empty bucket selects the
	// in-memory store, an empty knowledge base disables syncing.
	AWSRegion       string `yaml:"aws_region"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Endpoint      string `yaml:"s3_endpoint"`
	S3UsePathStyle  bool   `yaml:"s3_use_path_style"`
	KeyPrefix       string `yaml:"key_prefix"`
	KnowledgeBaseID string `yaml:"knowledge_base_id"`
	DataSourceID    string `yaml:"data_source_id"`

	// Pipeline
	WorkerPoolSize    int           `yaml:"worker_pool_size"`
	QueueSize         int           `yaml:"queue_size"`
	UploadConcurrency int           `yaml:"upload_concurrency"`
	StageTimeout      time.Duration `yaml:"stage_timeout"`
	ReplaceExisting   bool          `yaml:"replace_existing"`
	ChunkSize         int           `yaml:"chunk_size"`
	ChunkOverlap      int           `yaml:"chunk_overlap"`

	// LLM for commit explanations
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	OllamaHost      string `yaml:"ollama_host"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`

	// Logging
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ServerAddr: ":8080",
		ServerURL:  "http://localhost:8080",

		StoreBackend: StoreMemory,
		BadgerDir:    "./data/badger",

		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "repoingest",
		SurrealDBDatabase:  "jobs",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		GitHubAPIURL: "https://api.github.com",
		WorkDir:      os.TempDir(),

		AWSRegion: "us-east-1",
		KeyPrefix: "repositories",

		WorkerPoolSize:    4,
		QueueSize:         32,
		UploadConcurrency: 8,
		StageTimeout:      10 * time.Minute,
		ReplaceExisting:   true,
		ChunkSize:         1500,
		ChunkOverlap:      200,

		LLMProvider: ProviderOllama,
		LLMModel:    "llama3.2",
		OllamaHost:  "http://localhost:11434",

		LogFile:  "/tmp/repoingest.log",
		LogLevel: "INFO",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by REPOINGEST_CONFIG, and environment variables, in that order.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("REPOINGEST_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddr = getEnv("REPOINGEST_ADDR", c.ServerAddr)
	c.ServerURL = getEnv("REPOINGEST_URL", c.ServerURL)

	c.StoreBackend = strings.ToLower(getEnv("REPOINGEST_STORE", c.StoreBackend))
	c.BadgerDir = getEnv("REPOINGEST_BADGER_DIR", c.BadgerDir)

	c.SurrealDBURL = getEnv("SURREALDB_URL", c.SurrealDBURL)
	c.SurrealDBNamespace = getEnv("SURREALDB_NAMESPACE", c.SurrealDBNamespace)
	c.SurrealDBDatabase = getEnv("SURREALDB_DATABASE", c.SurrealDBDatabase)
	c.SurrealDBUser = getEnv("SURREALDB_USER", c.SurrealDBUser)
	c.SurrealDBPass = getEnv("SURREALDB_PASS", c.SurrealDBPass)
	c.SurrealDBAuthLevel = getEnv("SURREALDB_AUTH_LEVEL", c.SurrealDBAuthLevel)

	c.GitHubToken = getEnv("GITHUB_TOKEN", c.GitHubToken)
	c.GitHubAPIURL = getEnv("REPOINGEST_GITHUB_API_URL", c.GitHubAPIURL)
	c.WorkDir = getEnv("REPOINGEST_WORK_DIR", c.WorkDir)
	c.CloneDepth = getEnvInt("REPOINGEST_CLONE_DEPTH", c.CloneDepth)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.S3Bucket = getEnv("REPOINGEST_S3_BUCKET", c.S3Bucket)
	c.S3Endpoint = getEnv("REPOINGEST_S3_ENDPOINT", c.S3Endpoint)
	c.S3UsePathStyle = getEnvBool("REPOINGEST_S3_PATH_STYLE", c.S3UsePathStyle)
	c.KeyPrefix = getEnv("REPOINGEST_KEY_PREFIX", c.KeyPrefix)
	c.KnowledgeBaseID = getEnv("REPOINGEST_KNOWLEDGE_BASE_ID", c.KnowledgeBaseID)
	c.DataSourceID = getEnv("REPOINGEST_DATA_SOURCE_ID", c.DataSourceID)

	c.WorkerPoolSize = getEnvInt("REPOINGEST_WORKERS", c.WorkerPoolSize)
	c.QueueSize = getEnvInt("REPOINGEST_QUEUE_SIZE", c.QueueSize)
	c.UploadConcurrency = getEnvInt("REPOINGEST_UPLOAD_CONCURRENCY", c.UploadConcurrency)
	c.StageTimeout = getEnvDuration("REPOINGEST_STAGE_TIMEOUT", c.StageTimeout)
	c.ReplaceExisting = getEnvBool("REPOINGEST_REPLACE_EXISTING", c.ReplaceExisting)
	c.ChunkSize = getEnvInt("REPOINGEST_CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = getEnvInt("REPOINGEST_CHUNK_OVERLAP", c.ChunkOverlap)

	c.LLMProvider = strings.ToLower(getEnv("REPOINGEST_LLM_PROVIDER", c.LLMProvider))
	c.LLMModel = getEnv("REPOINGEST_LLM_MODEL", c.LLMModel)
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)

	c.LogFile = getEnv("REPOINGEST_LOG_FILE", c.LogFile)
	c.LogLevel = getEnv("REPOINGEST_LOG_LEVEL", c.LogLevel)
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreBadger, StoreSurrealDB:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker pool size must be positive, got %d", c.WorkerPoolSize)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue size must not be negative, got %d", c.QueueSize)
	}
	if c.UploadConcurrency <= 0 {
		return fmt.Errorf("upload concurrency must be positive, got %d", c.UploadConcurrency)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: size %d, overlap %d", c.ChunkSize, c.ChunkOverlap)
	}
	if (c.KnowledgeBaseID == "") != (c.DataSourceID == "") {
		return fmt.Errorf("knowledge base id and data source id must be set together")
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("ignoring invalid integer", "key", key, "value", val)
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		slog.Warn("ignoring invalid boolean", "key", key, "value", val)
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("ignoring invalid duration", "key", key, "value", val)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
