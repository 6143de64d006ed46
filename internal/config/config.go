package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"tradehub"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"tradehub"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey       string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	GenerativeModel    string `envconfig:"GENERATIVE_MODEL" default:"gemini-1.5-flash"`
	MigrationPath      string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	QueryLogPath       string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MediaScratchDir    string `envconfig:"MEDIA_SCRATCH_DIR" default:"/tmp/pipeline-media"`
	MediaSizeCeilingMB int64  `envconfig:"MEDIA_SIZE_CEILING_MB" default:"20"`

	// Chunking
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`

	// Embedding batches
	EmbedBatchSize  int           `envconfig:"EMBED_BATCH_SIZE" default:"3"`
	InterBatchDelay time.Duration `envconfig:"INTER_BATCH_DELAY" default:"5s"`
	UpsertBatchSize int           `envconfig:"UPSERT_BATCH_SIZE" default:"100"`

	// Quota-aware retry
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"60s"`
	RetryMaxDelay    time.Duration `envconfig:"RETRY_MAX_DELAY" default:"5m"`
	RetryMultiplier  float64       `envconfig:"RETRY_MULTIPLIER" default:"2"`

	// Retrieval
	SearchTopK        int     `envconfig:"SEARCH_TOP_K" default:"10"`
	PrimaryThreshold  float32 `envconfig:"PRIMARY_THRESHOLD" default:"0.30"`
	FallbackThreshold float32 `envconfig:"FALLBACK_THRESHOLD" default:"0.15"`
	ContextLimit      int     `envconfig:"CONTEXT_LIMIT" default:"5"`

	// Server
	ServerPort int `envconfig:"SERVER_PORT" default:"8082"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be smaller than CHUNK_SIZE")
	}
	return nil
}

// Separators is the priority-ordered separator list used when chunking
// content before embedding. The empty string means a hard character cut.
func (c *Config) Separators() []string {
	return []string{"\n\n", "\n", ".", "!", "?", ";", " ", ""}
}
