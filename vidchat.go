// Package vidchat provides a library for chatting with YouTube videos.
//
// Vidchat ingests a video's transcript, indexes it for semantic retrieval,
// classifies each message into an intent and streams an answer from a chat
// model, recording every exchange.
//
// Basic usage:
//
//	client, err := vidchat.New(
//	    vidchat.WithSQLite(".vidchat/vidchat.db"),
//	    vidchat.WithOpenAIConfig(provider.OpenAIConfig{APIKey: os.Getenv("OPENAI_API_KEY")}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Open a chatroom
//	v, _, err := client.Chatrooms.Create(ctx, "https://www.youtube.com/watch?v=abc123")
//
//	// Ask a question, streaming the answer to stdout
//	_, err = client.Chatrooms.Query(ctx, v.ID(), "What is this video about?", func(s string) error {
//	    _, err := fmt.Print(s)
//	    return err
//	})
package vidchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/helixml/vidchat/application/service"
	domainservice "github.com/helixml/vidchat/domain/service"
	"github.com/helixml/vidchat/infrastructure/persistence"
	"github.com/helixml/vidchat/infrastructure/prompt"
	"github.com/helixml/vidchat/infrastructure/provider"
	"github.com/helixml/vidchat/infrastructure/youtube"
	"github.com/helixml/vidchat/internal/config"
	"github.com/helixml/vidchat/internal/database"
)

// Client is the main entry point for the vidchat library.
//
// Access services via struct fields:
//
//	client.Chatrooms.List(ctx)
//	client.Index.SimilaritySearch(ctx, "query", videoID, 5)
type Client struct {
	Chatrooms *service.Chatroom
	Ingestion *service.Ingestion
	Index     *domainservice.VectorIndex

	db             database.Database
	hugotEmbedding *provider.HugotEmbedding
	closers        []io.Closer

	logger  *slog.Logger
	dataDir string
	closed  atomic.Bool
	mu      sync.Mutex
}

// New creates a new Client with the given options. Resources acquired
// before a failure are released before New returns.
func New(opts ...Option) (_ *Client, err error) {
	cfg := newClientConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	var hugotEmbedding *provider.HugotEmbedding
	defer func() {
		if err == nil {
			return
		}
		if hugotEmbedding != nil {
			err = errors.Join(err, hugotEmbedding.Close())
		}
		for _, closer := range cfg.closers {
			err = errors.Join(err, closer.Close())
		}
	}()

	if cfg.dbURL == "" {
		return nil, ErrNoDatabase
	}
	if cfg.generator == nil {
		return nil, ErrNoChatModel
	}
	if err := cfg.chunkParams.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}

	dataDir, err := config.PrepareDataDir(cfg.dataDir)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	// Fall back to the local embedding model
	embeddingProvider, embeddingModel := cfg.embeddingProvider, cfg.embeddingModel
	if embeddingProvider == nil {
		modelDir := cfg.modelDir
		if modelDir == "" {
			modelDir = filepath.Join(dataDir, config.DefaultModelsSubdir)
		}
		hugotEmbedding = provider.NewHugotEmbedding(modelDir)
		if !hugotEmbedding.Available() {
			return nil, fmt.Errorf("%w: nothing found in %s, run 'vidchat download-model' or configure an embedding endpoint", ErrNoEmbedder, modelDir)
		}
		embeddingProvider, embeddingModel = hugotEmbedding, provider.LocalEmbeddingModel
		logger.Info("built-in embedding provider enabled", slog.String("model_dir", modelDir))
	}

	embedder, err := provider.NewVectorEmbedder(ctx, embeddingProvider, embeddingModel, cfg.embeddingDimension)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	db, err := database.NewDatabase(ctx, cfg.dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := persistence.AutoMigrate(ctx, db); err != nil {
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), db.Close())
	}

	chunkStore, err := persistence.NewChunkStore(ctx, db, embedder.Dimension(), logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("chunk store: %w", err), db.Close())
	}
	index, err := domainservice.NewVectorIndex(chunkStore, embedder, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("vector index: %w", err), db.Close())
	}

	source := cfg.source
	if source == nil {
		source = youtube.NewClient(
			youtube.WithRequestsPerSecond(cfg.youtubeRPS),
			youtube.WithLogger(logger),
		)
	}

	prompts, err := prompt.Default()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("load prompts: %w", err), db.Close())
	}

	ingestion, err := service.NewIngestion(source, cfg.chunkParams, cfg.ingestWorkers, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create ingestion: %w", err), db.Close())
	}

	videos := persistence.NewVideoStore(db)
	turns := persistence.NewTurnStore(db)

	router := service.NewRouter(cfg.generator, index, turns, prompts,
		service.WithHistoryWindow(cfg.historyWindow),
		service.WithSearchLimit(cfg.searchLimit),
		service.WithRouterLogger(logger),
	)

	chatrooms, err := service.NewChatroom(service.ChatroomDeps{
		Ingestion:  ingestion,
		Describer:  source,
		Index:      index,
		Videos:     videos,
		Turns:      turns,
		Classifier: service.NewClassifier(cfg.generator, prompts, logger),
		Router:     router,
		Recorder:   service.NewRecorder(turns, cfg.policy, logger),
		Model:      cfg.generator,
		Prompts:    prompts,
		Logger:     logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create chatrooms: %w", err), db.Close())
	}

	logger.Info("vidchat client ready",
		slog.String("data_dir", dataDir),
		slog.Int("embedding_dimension", embedder.Dimension()),
		slog.String("persist_policy", cfg.policy.String()),
	)

	return &Client{
		Chatrooms:      chatrooms,
		Ingestion:      ingestion,
		Index:          index,
		db:             db,
		hugotEmbedding: hugotEmbedding,
		closers:        cfg.closers,
		logger:         logger,
		dataDir:        dataDir,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hugotEmbedding != nil {
		if err := c.hugotEmbedding.Close(); err != nil {
			c.logger.Error("failed to close hugot embedding", slog.Any("error", err))
		}
	}

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("vidchat client closed")
	return nil
}

// DataDir returns the resolved data directory.
func (c *Client) DataDir() string {
	return c.dataDir
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}
