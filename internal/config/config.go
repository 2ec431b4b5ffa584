package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

// Vector backends.
const (
	BackendWeaviate = "weaviate"
	BackendMemory   = "memory"
)

type Config struct {
	DBEnabled bool   `envconfig:"DB_ENABLED" default:"true"`
	DBHost    string `envconfig:"DB_HOST" default:"postgres"`
	DBPort    int    `envconfig:"DB_PORT" default:"5432"`
	DBUser    string `envconfig:"DB_USER" default:"chatbot"`
	DBPass    string `envconfig:"DB_PASS" default:"password"`
	DBName    string `envconfig:"DB_NAME" default:"chatbot"`

	VectorBackend   string `envconfig:"VECTOR_BACKEND" default:"weaviate"`
	WeaviateHost    string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme  string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	IndexCollection string `envconfig:"INDEX_COLLECTION" default:"ProfileChunk"`

	NSQEnabled bool   `envconfig:"NSQ_ENABLED" default:"true"`
	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Indexing
	DataDir             string  `envconfig:"DATA_DIR" default:"data"`
	LoaderPattern       string  `envconfig:"LOADER_PATTERN" default:"*"`
	LoaderConcurrency   int     `envconfig:"LOADER_CONCURRENCY" default:"4"`
	ChunkSize           int     `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap        int     `envconfig:"CHUNK_OVERLAP" default:"100"`
	ChunkMinLength      int     `envconfig:"CHUNK_MIN_LENGTH" default:"30"`
	EmbedBatchSize      int     `envconfig:"EMBED_BATCH_SIZE" default:"50"`
	EmbedRPS            float64 `envconfig:"EMBED_RPS" default:"0"`
	AutoIndex           bool    `envconfig:"AUTO_INDEX" default:"true"`
	EnableIndexWorker   bool    `envconfig:"ENABLE_INDEX_WORKER" default:"true"`
	WatchDataDir        bool    `envconfig:"WATCH_DATA_DIR" default:"false"`
	IndexTimeoutMinutes int     `envconfig:"INDEX_TIMEOUT_MINUTES" default:"30"`

	// Models
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"gemini-2.5-flash"`
	VisionModel    string `envconfig:"VISION_MODEL" default:"gemini-2.5-flash"`
	SearchTopK     int    `envconfig:"SEARCH_TOP_K" default:"3"`
	PromptsPath    string `envconfig:"PROMPTS_PATH"`

	RemoteTimeoutSeconds     int `envconfig:"REMOTE_TIMEOUT_SECONDS" default:"60"`
	GenerationTimeoutSeconds int `envconfig:"GENERATION_TIMEOUT_SECONDS" default:"120"`

	// Server
	ServerPort         int      `envconfig:"SERVER_PORT" default:"8081"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:8080,http://127.0.0.1:8080"`
	QueryLogPath       string   `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MigrationPath      string   `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

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
	if c.DBEnabled {
		if c.DBHost == "" {
			return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
		}
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
		}
		if c.DBName == "" {
			return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
		}
	}

	switch c.VectorBackend {
	case BackendWeaviate:
		if c.WeaviateHost == "" {
			return fmt.Errorf("%w: WEAVIATE_HOST", ErrMissingRequired)
		}
		if c.IndexCollection == "" {
			return fmt.Errorf("%w: INDEX_COLLECTION", ErrMissingRequired)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND %q", ErrInvalidValue, c.VectorBackend)
	}

	if c.DataDir == "" {
		return fmt.Errorf("%w: DATA_DIR", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalidValue)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", ErrInvalidValue)
	}
	if c.SearchTopK <= 0 {
		return fmt.Errorf("%w: SEARCH_TOP_K must be positive", ErrInvalidValue)
	}
	return nil
}

// DSN is the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}

// AllowedOrigins returns the trimmed, non-empty CORS origins.
func (c *Config) AllowedOrigins() []string {
	out := make([]string, 0, len(c.CORSAllowedOrigins))
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSeconds) * time.Second
}

func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSeconds) * time.Second
}

func (c *Config) IndexTimeout() time.Duration {
	return time.Duration(c.IndexTimeoutMinutes) * time.Minute
}
