package main

import (
	"fmt"
	"log/slog"

	"github.com/helixml/vidchat"
	"github.com/helixml/vidchat/application/service"
	"github.com/helixml/vidchat/infrastructure/provider"
	"github.com/helixml/vidchat/internal/config"
)

// clientOptions returns the vidchat.Option slice derived from AppConfig:
// storage, the chat model, the embedding model and pipeline tuning.
func clientOptions(cfg config.AppConfig, logger *slog.Logger) ([]vidchat.Option, error) {
	opts := []vidchat.Option{
		vidchat.WithDataDir(cfg.DataDir()),
		vidchat.WithModelDir(cfg.ModelsDir()),
		vidchat.WithDatabaseURL(cfg.DBURL()),
		vidchat.WithLogger(logger),
	}

	chat, err := chatOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("chat config: %w", err)
	}
	opts = append(opts, chat...)
	opts = append(opts, embeddingOptions(cfg)...)

	policy, err := service.ParseFailurePolicy(string(cfg.PersistPolicy()))
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		vidchat.WithEmbeddingDimension(cfg.EmbeddingDimension()),
		vidchat.WithChunking(cfg.ChunkSize(), cfg.ChunkOverlap()),
		vidchat.WithIngestWorkers(cfg.IngestWorkers()),
		vidchat.WithHistoryWindow(cfg.HistoryWindow()),
		vidchat.WithSearchLimit(cfg.SearchLimit()),
		vidchat.WithYouTubeRequestsPerSecond(cfg.YouTubeRequestsPerSecond()),
		vidchat.WithFailurePolicy(policy),
	)
	return opts, nil
}

// chatOptions configures the chat model. It is required.
func chatOptions(cfg config.AppConfig) ([]vidchat.Option, error) {
	endpoint := cfg.ChatEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil, fmt.Errorf("CHAT_ENDPOINT_MODEL is not set")
	}

	return []vidchat.Option{vidchat.WithOpenAIConfig(provider.OpenAIConfig{
		APIKey:        endpoint.APIKey(),
		BaseURL:       endpoint.BaseURL(),
		ChatModel:     endpoint.Model(),
		Timeout:       endpoint.Timeout(),
		MaxRetries:    endpoint.MaxRetries(),
		InitialDelay:  endpoint.InitialDelay(),
		BackoffFactor: endpoint.BackoffFactor(),
		CacheDir:      cfg.HTTPCacheDir(),
	})}, nil
}

// embeddingOptions returns a remote embedding provider when the embedding
// endpoint is configured, or an empty slice to fall back to the local model.
func embeddingOptions(cfg config.AppConfig) []vidchat.Option {
	endpoint := cfg.EmbeddingEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil
	}

	p := provider.NewOpenAIProviderFromConfig(provider.OpenAIConfig{
		APIKey:         endpoint.APIKey(),
		BaseURL:        endpoint.BaseURL(),
		EmbeddingModel: endpoint.Model(),
		Timeout:        endpoint.Timeout(),
		MaxRetries:     endpoint.MaxRetries(),
		InitialDelay:   endpoint.InitialDelay(),
		BackoffFactor:  endpoint.BackoffFactor(),
		BatchSize:      endpoint.MaxBatchSize(),
		CacheDir:       cfg.HTTPCacheDir(),
	})
	return []vidchat.Option{vidchat.WithEmbeddingProvider(p, endpoint.Model())}
}
