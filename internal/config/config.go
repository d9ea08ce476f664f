// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultLogLevel              = "INFO"
	DefaultEmbeddingDimension    = 768
	DefaultChunkSize             = 300
	DefaultChunkOverlap          = 30
	DefaultIngestWorkers         = 12
	DefaultHistoryWindow         = 5
	DefaultSearchLimit           = 15
	DefaultYouTubeRPS            = 2.0
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoffFactor = 2.0
	DefaultEndpointMaxBatchSize  = 64
	DefaultModelsSubdir          = "models"
)

// DefaultCORSOrigins are the origins allowed when CORS_ORIGINS is unset.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost"}

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// PersistPolicy selects what is stored as the bot turn when generation
// fails part way through.
type PersistPolicy string

// PersistPolicy values.
const (
	PersistSentinel    PersistPolicy = "sentinel"
	PersistKeepPartial PersistPolicy = "keep-partial"
)

// Endpoint configures an OpenAI-compatible model endpoint.
type Endpoint struct {
	baseURL       string
	model         string
	apiKey        string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
	maxBatchSize  int
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointMaxRetries,
		initialDelay:  DefaultEndpointInitialDelay,
		backoffFactor: DefaultEndpointBackoffFactor,
		maxBatchSize:  DefaultEndpointMaxBatchSize,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// MaxBatchSize returns the maximum number of texts per embedding request.
func (e Endpoint) MaxBatchSize() int { return e.maxBatchSize }

// IsConfigured returns true if the endpoint has a model.
func (e Endpoint) IsConfigured() bool {
	return e.model != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// WithMaxBatchSize sets the maximum embedding batch size.
func WithMaxBatchSize(n int) EndpointOption {
	return func(e *Endpoint) {
		if n > 0 {
			e.maxBatchSize = n
		}
	}
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host               string
	port               int
	dataDir            string
	dbURL              string
	logLevel           string
	logFormat          LogFormat
	corsOrigins        []string
	chatEndpoint       *Endpoint
	embeddingEndpoint  *Endpoint
	embeddingDimension int
	chunkSize          int
	chunkOverlap       int
	ingestWorkers      int
	historyWindow      int
	searchLimit        int
	persistPolicy      PersistPolicy
	youtubeRPS         float64
	httpCacheDir       string
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vidchat"
	}
	return filepath.Join(home, ".vidchat")
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	origins := make([]string, len(DefaultCORSOrigins))
	copy(origins, DefaultCORSOrigins)
	return AppConfig{
		host:               DefaultHost,
		port:               DefaultPort,
		dataDir:            dataDir,
		dbURL:              defaultDBURL(dataDir),
		logLevel:           DefaultLogLevel,
		logFormat:          LogFormatPretty,
		corsOrigins:        origins,
		embeddingDimension: DefaultEmbeddingDimension,
		chunkSize:          DefaultChunkSize,
		chunkOverlap:       DefaultChunkOverlap,
		ingestWorkers:      DefaultIngestWorkers,
		historyWindow:      DefaultHistoryWindow,
		searchLimit:        DefaultSearchLimit,
		persistPolicy:      PersistSentinel,
		youtubeRPS:         DefaultYouTubeRPS,
	}
}

func defaultDBURL(dataDir string) string {
	return "sqlite:///" + filepath.Join(dataDir, "vidchat.db")
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// CORSOrigins returns the allowed browser origins.
func (c AppConfig) CORSOrigins() []string {
	origins := make([]string, len(c.corsOrigins))
	copy(origins, c.corsOrigins)
	return origins
}

// ChatEndpoint returns the chat model endpoint, or nil.
func (c AppConfig) ChatEndpoint() *Endpoint { return c.chatEndpoint }

// EmbeddingEndpoint returns the remote embedding endpoint, or nil when the
// local model should be used.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// EmbeddingDimension returns the configured vector dimension.
func (c AppConfig) EmbeddingDimension() int { return c.embeddingDimension }

// ChunkSize returns the chunk window in runes.
func (c AppConfig) ChunkSize() int { return c.chunkSize }

// ChunkOverlap returns the chunk overlap in runes.
func (c AppConfig) ChunkOverlap() int { return c.chunkOverlap }

// IngestWorkers returns the transcript fan-out ceiling.
func (c AppConfig) IngestWorkers() int { return c.ingestWorkers }

// HistoryWindow returns how many recent turns the chat strategy reads.
func (c AppConfig) HistoryWindow() int { return c.historyWindow }

// SearchLimit returns the default similarity search limit.
func (c AppConfig) SearchLimit() int { return c.searchLimit }

// PersistPolicy returns the failed-generation persistence policy.
func (c AppConfig) PersistPolicy() PersistPolicy { return c.persistPolicy }

// YouTubeRequestsPerSecond returns the outbound YouTube request rate.
func (c AppConfig) YouTubeRequestsPerSecond() float64 { return c.youtubeRPS }

// HTTPCacheDir returns the directory for caching model responses, or "".
func (c AppConfig) HTTPCacheDir() string { return c.httpCacheDir }

// ModelsDir returns where local embedding models are stored.
func (c AppConfig) ModelsDir() string {
	return filepath.Join(c.dataDir, DefaultModelsSubdir)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory. The default SQLite URL follows it.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		if c.dbURL == "" || c.dbURL == defaultDBURL(c.dataDir) {
			c.dbURL = defaultDBURL(dir)
		}
		c.dataDir = dir
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		c.corsOrigins = make([]string, len(origins))
		copy(c.corsOrigins, origins)
	}
}

// WithChatEndpoint sets the chat model endpoint.
func WithChatEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.chatEndpoint = &e }
}

// WithEmbeddingEndpoint sets the remote embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithEmbeddingDimension sets the vector dimension.
func WithEmbeddingDimension(n int) AppConfigOption {
	return positive(n, func(c *AppConfig) { c.embeddingDimension = n })
}

// WithChunking sets the chunk window and overlap.
func WithChunking(size, overlap int) AppConfigOption {
	return func(c *AppConfig) {
		if size > 0 {
			c.chunkSize = size
		}
		if overlap >= 0 {
			c.chunkOverlap = overlap
		}
	}
}

// WithIngestWorkers sets the transcript fan-out ceiling.
func WithIngestWorkers(n int) AppConfigOption {
	return positive(n, func(c *AppConfig) { c.ingestWorkers = n })
}

// WithHistoryWindow sets how many recent turns the chat strategy reads.
func WithHistoryWindow(n int) AppConfigOption {
	return positive(n, func(c *AppConfig) { c.historyWindow = n })
}

// WithSearchLimit sets the default similarity search limit.
func WithSearchLimit(n int) AppConfigOption {
	return positive(n, func(c *AppConfig) { c.searchLimit = n })
}

// WithPersistPolicy sets the failed-generation persistence policy.
func WithPersistPolicy(p PersistPolicy) AppConfigOption {
	return func(c *AppConfig) { c.persistPolicy = p }
}

// WithYouTubeRequestsPerSecond sets the outbound YouTube request rate.
func WithYouTubeRequestsPerSecond(rps float64) AppConfigOption {
	return func(c *AppConfig) {
		if rps > 0 {
			c.youtubeRPS = rps
		}
	}
}

// WithHTTPCacheDir enables on-disk caching of model responses.
func WithHTTPCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.httpCacheDir = dir }
}

func positive(n int, apply AppConfigOption) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			apply(c)
		}
	}
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	return NewAppConfig().Apply(opts...)
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Validate reports configuration that can never work.
func (c AppConfig) Validate() error {
	if c.chunkOverlap >= c.chunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.chunkOverlap, c.chunkSize)
	}
	switch c.persistPolicy {
	case PersistSentinel, PersistKeepPartial:
	default:
		return fmt.Errorf("unknown persist policy %q", c.persistPolicy)
	}
	return nil
}

// LogAttrs returns slog attributes for logging the configuration.
// Secrets are never included.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("chat_base_url", endpointBaseURL(c.chatEndpoint)),
		slog.String("chat_model", endpointModel(c.chatEndpoint)),
		slog.String("embedding_base_url", endpointBaseURL(c.embeddingEndpoint)),
		slog.String("embedding_model", embeddingModel(c.embeddingEndpoint)),
		slog.Int("embedding_dimension", c.embeddingDimension),
		slog.Int("chunk_size", c.chunkSize),
		slog.Int("chunk_overlap", c.chunkOverlap),
		slog.String("persist_policy", string(c.persistPolicy)),
	}
}

func (c AppConfig) maskedDBURL() string {
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}

func endpointBaseURL(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return e.BaseURL()
}

func endpointModel(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return e.Model()
}

func embeddingModel(e *Endpoint) string {
	if e == nil {
		return "(local)"
	}
	return e.Model()
}

// ParseList parses a comma-separated list, dropping blanks.
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
