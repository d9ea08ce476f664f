package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helixml/vidchat"
	"github.com/helixml/vidchat/infrastructure/api"
	"github.com/helixml/vidchat/internal/config"
	"github.com/helixml/vidchat/internal/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.vidchat)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/vidchat.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  CORS_ORIGINS                 Comma-separated list of allowed browser origins

  CHAT_ENDPOINT_*              Chat model configuration (MODEL is required)
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier (e.g., gpt-4o-mini)
    API_KEY                    API key for authentication
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 5)

  EMBEDDING_ENDPOINT_*         Remote embedding model (same fields as CHAT_ENDPOINT)
    MAX_BATCH_SIZE             Texts per embedding request (default: 64)
  EMBEDDING_DIMENSION          Vector dimension (default: 768)

  CHUNK_SIZE                   Chunk window in runes (default: 300)
  CHUNK_OVERLAP                Chunk overlap in runes (default: 30)
  INGEST_WORKERS               Concurrent transcript builds (default: 12)
  HISTORY_WINDOW               Turns read by general chat (default: 5)
  SEARCH_LIMIT                 Chunks read by retrieval (default: 15)
  PERSIST_POLICY               sentinel or keep-partial (default: sentinel)
  YOUTUBE_REQUESTS_PER_SECOND  Outbound YouTube rate (default: 2)
  HTTP_CACHE_DIR               Cache model responses on disk`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger := log.Configure(cfg, os.Stderr)

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "starting vidchat", attrs...)

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	apiServer := api.NewAPIServer(client, cfg.CORSOrigins(), version)
	apiServer.MountRoutes()

	server := api.NewServer(cfg.Addr(), cfg.CORSOrigins(), logger)
	server.Router().Mount("/", apiServer.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	logger.Info("starting server", slog.String("addr", cfg.Addr()))
	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// newClient builds a vidchat client from cfg.
func newClient(cfg config.AppConfig, logger *slog.Logger) (*vidchat.Client, error) {
	opts, err := clientOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	client, err := vidchat.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create vidchat client: %w", err)
	}
	return client, nil
}

func closeClient(client *vidchat.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil && !errors.Is(err, vidchat.ErrClientClosed) {
		logger.Error("failed to close vidchat client", slog.Any("error", err))
	}
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
