package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helixml/vidchat/infrastructure/youtube"
	"github.com/helixml/vidchat/internal/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func ingestCmd() *cobra.Command {
	var (
		envFile    string
		resetIndex bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <url>...",
		Short: "Ingest YouTube videos or playlists",
		Long: `Fetch transcripts for the given videos, index them and create a chatroom for each.

Playlist URLs are expanded to their videos. Videos that were already ingested
are left untouched.

Examples:
  vidchat ingest https://www.youtube.com/watch?v=dQw4w9WgXcQ
  vidchat ingest https://www.youtube.com/playlist?list=PL590L5WQmH8fJ54F369BLDSqIwcs-TCfs
  vidchat ingest --reset-index https://youtu.be/dQw4w9WgXcQ`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(envFile, resetIndex, args)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().BoolVar(&resetIndex, "reset-index", false, "Remove every indexed chunk before ingesting")

	return cmd
}

func runIngest(envFile string, resetIndex bool, args []string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger := log.Configure(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	if resetIndex {
		if err := client.Index.Clear(ctx); err != nil {
			return fmt.Errorf("reset index: %w", err)
		}
		logger.Info("vector index cleared")
	}

	var urls []string
	for _, arg := range args {
		if !youtube.IsPlaylist(arg) {
			urls = append(urls, arg)
			continue
		}
		videos, err := client.Ingestion.ExpandPlaylist(ctx, arg)
		if err != nil {
			return fmt.Errorf("expand playlist %s: %w", arg, err)
		}
		logger.Info("expanded playlist", slog.String("url", arg), slog.Int("videos", len(videos)))
		urls = append(urls, videos...)
	}
	if len(urls) == 0 {
		fmt.Println("Nothing to ingest.")
		return nil
	}

	bar := progressbar.NewOptions(len(urls),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Fetching transcripts[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	start := time.Now()
	done := 0
	out := client.Chatrooms.CreateMany(ctx, urls, func(string, error) {
		done++
		bar.Describe("[cyan]Indexing[reset]")
		_ = bar.Set(done)
	})
	_ = bar.Finish()

	fmt.Printf("\nIngested %d videos in %s\n", len(urls), time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Created:          %d\n", len(out.Created))
	fmt.Printf("  Already ingested: %d\n", len(out.Existing))
	fmt.Printf("  Failed:           %d\n", len(out.Failures))
	for _, v := range out.Created {
		fmt.Printf("  + %s  %s\n", v.ID(), v.Title())
	}
	for _, f := range out.Failures {
		fmt.Printf("  ! %s: %v\n", f.URL, f.Err)
	}

	if len(out.Failures) == len(urls) {
		return fmt.Errorf("no video could be ingested")
	}
	return nil
}
