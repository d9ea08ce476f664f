// Package main is the entry point for the vidchat CLI.
//
//	@title			Vidchat API
//	@version		1.0
//	@description	Chat with YouTube videos through their transcripts
//	@host			localhost:8080
//	@BasePath		/api
package main

import (
	"fmt"
	"os"

	"github.com/helixml/vidchat/internal/config"
	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vidchat",
		Short:        "Chat with YouTube videos",
		Long:         `vidchat ingests YouTube transcripts into a vector index and answers questions about each video with a chat model.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(ingestCmd())
	cmd.AddCommand(downloadModelCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
