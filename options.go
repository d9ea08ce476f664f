package vidchat

import (
	"io"
	"log/slog"

	"github.com/helixml/vidchat/application/service"
	"github.com/helixml/vidchat/domain/chunk"
	"github.com/helixml/vidchat/infrastructure/chunking"
	"github.com/helixml/vidchat/infrastructure/provider"
	"github.com/helixml/vidchat/infrastructure/youtube"
	"github.com/helixml/vidchat/internal/config"
)

// TranscriptSource fetches captions, page metadata and playlist contents.
type TranscriptSource interface {
	service.TranscriptSource
	service.Describer
}

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	dbURL              string
	dataDir            string
	modelDir           string
	generator          provider.Generator
	embeddingProvider  provider.Embedder
	embeddingModel     string
	embeddingDimension int
	source             TranscriptSource
	youtubeRPS         float64
	chunkParams        chunking.Params
	ingestWorkers      int
	historyWindow      int
	searchLimit        int
	policy             service.FailurePolicy
	logger             *slog.Logger
	closers            []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{
		dataDir:       config.DefaultDataDir(),
		youtubeRPS:    youtube.DefaultRequestsPerSecond,
		chunkParams:   chunking.DefaultParams(),
		ingestWorkers: service.DefaultIngestWorkers,
		historyWindow: service.DefaultHistoryWindow,
		searchLimit:   chunk.DefaultSearchLimit,
		policy:        service.PolicySentinel,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithDatabaseURL sets the database, either sqlite:///path or postgres://dsn.
// PostgreSQL databases store vectors with pgvector.
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithSQLite configures a SQLite database file.
func WithSQLite(path string) Option {
	return WithDatabaseURL("sqlite:///" + path)
}

// WithGenerator sets the chat model used for classification and answers.
func WithGenerator(g provider.Generator) Option {
	return func(c *clientConfig) {
		c.generator = g
	}
}

// WithOpenAIConfig uses an OpenAI-compatible endpoint as the chat model.
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return WithGenerator(provider.NewOpenAIProviderFromConfig(cfg))
}

// WithEmbeddingProvider sets a remote or custom embedding provider. Without
// one, the local model in the model directory is used.
func WithEmbeddingProvider(p provider.Embedder, model string) Option {
	return func(c *clientConfig) {
		c.embeddingProvider = p
		c.embeddingModel = model
	}
}

// WithEmbeddingDimension fixes the vector dimension. Zero resolves it from
// the model.
func WithEmbeddingDimension(n int) Option {
	return func(c *clientConfig) {
		if n >= 0 {
			c.embeddingDimension = n
		}
	}
}

// WithTranscriptSource replaces the YouTube client.
func WithTranscriptSource(s TranscriptSource) Option {
	return func(c *clientConfig) {
		c.source = s
	}
}

// WithYouTubeRequestsPerSecond throttles outbound YouTube requests.
func WithYouTubeRequestsPerSecond(rps float64) Option {
	return func(c *clientConfig) {
		c.youtubeRPS = rps
	}
}

// WithChunking sets the transcript chunk size and overlap in runes.
func WithChunking(size, overlap int) Option {
	return func(c *clientConfig) {
		c.chunkParams = chunking.Params{Size: size, Overlap: overlap}
	}
}

// WithIngestWorkers caps concurrent transcript builds. Values <= 0 are ignored.
func WithIngestWorkers(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.ingestWorkers = n
		}
	}
}

// WithHistoryWindow sets how many recent turns general chat reads.
// Values <= 0 are ignored.
func WithHistoryWindow(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.historyWindow = n
		}
	}
}

// WithSearchLimit sets how many chunks retrieval strategies read.
// Values <= 0 are ignored.
func WithSearchLimit(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.searchLimit = n
		}
	}
}

// WithFailurePolicy selects what is recorded when generation fails.
func WithFailurePolicy(p service.FailurePolicy) Option {
	return func(c *clientConfig) {
		c.policy = p
	}
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithModelDir sets the directory holding the local embedding model.
// Defaults to {dataDir}/models if not specified.
func WithModelDir(dir string) Option {
	return func(c *clientConfig) {
		c.modelDir = dir
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithCloser registers a resource to be closed when the Client shuts down,
// or straight away if New fails.
func WithCloser(c io.Closer) Option {
	return func(cfg *clientConfig) {
		cfg.closers = append(cfg.closers, c)
	}
}
