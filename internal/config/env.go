package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., CHAT_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.vidchat
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/vidchat.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// CORSOrigins is a comma-separated list of allowed browser origins.
	// Env: CORS_ORIGINS
	CORSOrigins string `envconfig:"CORS_ORIGINS"`

	// ChatEndpoint configures the chat completion model.
	ChatEndpoint EndpointEnv `envconfig:"CHAT_ENDPOINT"`

	// EmbeddingEndpoint configures a remote embedding model. When no model is
	// set the bundled local model is used.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// EmbeddingDimension must match the embedding model's output.
	// Env: EMBEDDING_DIMENSION (default: 768)
	EmbeddingDimension int `envconfig:"EMBEDDING_DIMENSION" default:"768"`

	// ChunkSize is the chunk window in runes.
	// Env: CHUNK_SIZE (default: 300)
	ChunkSize int `envconfig:"CHUNK_SIZE" default:"300"`

	// ChunkOverlap is the overlap between adjacent chunks in runes.
	// Env: CHUNK_OVERLAP (default: 30)
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"30"`

	// IngestWorkers caps concurrent transcript builds.
	// Env: INGEST_WORKERS (default: 12)
	IngestWorkers int `envconfig:"INGEST_WORKERS" default:"12"`

	// HistoryWindow is how many recent turns general chat reads.
	// Env: HISTORY_WINDOW (default: 5)
	HistoryWindow int `envconfig:"HISTORY_WINDOW" default:"5"`

	// SearchLimit is the default similarity search limit.
	// Env: SEARCH_LIMIT (default: 15)
	SearchLimit int `envconfig:"SEARCH_LIMIT" default:"15"`

	// PersistPolicy is sentinel or keep-partial.
	// Env: PERSIST_POLICY (default: sentinel)
	PersistPolicy string `envconfig:"PERSIST_POLICY" default:"sentinel"`

	// YouTubeRPS throttles outbound YouTube requests.
	// Env: YOUTUBE_REQUESTS_PER_SECOND (default: 2)
	YouTubeRPS float64 `envconfig:"YOUTUBE_REQUESTS_PER_SECOND" default:"2"`

	// HTTPCacheDir is the directory for caching model responses to disk.
	// Env: HTTP_CACHE_DIR
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`
}

// EndpointEnv holds environment configuration for a model endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: *_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier (e.g., gpt-4o-mini).
	// Env: *_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: *_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	// Env: *_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: *_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: *_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: *_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`

	// MaxBatchSize is the maximum number of texts per embedding request.
	// Env: *_MAX_BATCH_SIZE (default: 64)
	MaxBatchSize int `envconfig:"MAX_BATCH_SIZE" default:"64"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	return LoadFromEnvWithPrefix("")
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "VIDCHAT" would require VIDCHAT_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	opts := []AppConfigOption{
		WithEmbeddingDimension(e.EmbeddingDimension),
		WithChunking(e.ChunkSize, e.ChunkOverlap),
		WithIngestWorkers(e.IngestWorkers),
		WithHistoryWindow(e.HistoryWindow),
		WithSearchLimit(e.SearchLimit),
		WithYouTubeRequestsPerSecond(e.YouTubeRPS),
	}

	if e.Host != "" {
		opts = append(opts, WithHost(e.Host))
	}
	if e.Port != 0 {
		opts = append(opts, WithPort(e.Port))
	}
	if e.DataDir != "" {
		opts = append(opts, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		opts = append(opts, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		opts = append(opts, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if origins := ParseList(e.CORSOrigins); len(origins) > 0 {
		opts = append(opts, WithCORSOrigins(origins))
	}
	if e.ChatEndpoint.IsConfigured() {
		opts = append(opts, WithChatEndpoint(e.ChatEndpoint.ToEndpoint()))
	}
	if e.EmbeddingEndpoint.IsConfigured() {
		opts = append(opts, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()))
	}
	if e.PersistPolicy != "" {
		opts = append(opts, WithPersistPolicy(PersistPolicy(strings.ToLower(strings.TrimSpace(e.PersistPolicy)))))
	}
	if e.HTTPCacheDir != "" {
		opts = append(opts, WithHTTPCacheDir(e.HTTPCacheDir))
	}

	return NewAppConfigWithOptions(opts...)
}

// IsConfigured returns true if the endpoint has a model configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.Model != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithModel(e.Model),
		WithTimeout(seconds(e.Timeout)),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(seconds(e.InitialDelay)),
		WithBackoffFactor(e.BackoffFactor),
		WithMaxBatchSize(e.MaxBatchSize),
	}
	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	return NewEndpointWithOptions(opts...)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
