package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/video"
	"github.com/helixml/vidchat/infrastructure/chunking"
	"github.com/helixml/vidchat/infrastructure/youtube"
	"golang.org/x/sync/errgroup"
)

// DefaultIngestWorkers bounds concurrent transcript builds.
const DefaultIngestWorkers = 12

// TranscriptSource fetches captions and page metadata.
type TranscriptSource interface {
	Transcript(ctx context.Context, videoID string) ([]video.Segment, error)
	Title(ctx context.Context, url string) string
	PlaylistVideos(ctx context.Context, playlistURL string) ([]string, error)
}

// Failure records one URL that could not be ingested.
type Failure struct {
	URL string
	Err error
}

// BatchResult holds the transcripts built by a batch, in completion order,
// and the URLs that failed.
type BatchResult struct {
	Transcripts []video.Transcript
	Failures    []Failure
}

// Ingestion turns video URLs into chunked transcripts.
type Ingestion struct {
	source  TranscriptSource
	params  chunking.Params
	workers int
	logger  *slog.Logger
}

// NewIngestion creates an Ingestion. Non-positive workers use the default.
func NewIngestion(source TranscriptSource, params chunking.Params, workers int, logger *slog.Logger) (*Ingestion, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: transcript source is required", domain.ErrValidation)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = DefaultIngestWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestion{source: source, params: params, workers: workers, logger: logger}, nil
}

// FetchTranscript returns the timestamped captions of a video.
func (s *Ingestion) FetchTranscript(ctx context.Context, videoID string) ([]video.Segment, error) {
	segments, err := s.source.Transcript(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch transcript for %s: %w", domain.ErrIngestion, videoID, err)
	}
	return segments, nil
}

// Build validates the URL, then fetches and chunks the transcript.
func (s *Ingestion) Build(ctx context.Context, url string) (video.Transcript, error) {
	url = strings.TrimSpace(url)
	id, err := youtube.VideoID(url)
	if err != nil {
		return video.Transcript{}, err
	}

	title := s.source.Title(ctx, url)
	segments, err := s.FetchTranscript(ctx, id)
	if err != nil {
		return video.Transcript{}, err
	}

	content := video.JoinSegments(segments)
	chunks, err := chunking.Split(content, s.params)
	if err != nil {
		return video.Transcript{}, fmt.Errorf("chunk transcript for %s: %w", id, err)
	}
	if len(chunks) == 0 {
		return video.Transcript{}, fmt.Errorf("%w: transcript for %s is empty", domain.ErrIngestion, id)
	}

	s.logger.InfoContext(ctx, "transcript built",
		slog.String("video_id", id),
		slog.String("title", title),
		slog.Int("segments", len(segments)),
		slog.Int("chunks", len(chunks)),
	)
	return video.NewTranscript(url, id, title, content, chunks, segments), nil
}

// BuildMany builds every URL with bounded concurrency. A failing URL never
// affects the others.
func (s *Ingestion) BuildMany(ctx context.Context, urls []string) BatchResult {
	var (
		mu     sync.Mutex
		result BatchResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, u := range urls {
		g.Go(func() error {
			t, err := s.Build(gctx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.WarnContext(ctx, "transcript build failed", slog.String("url", u), slog.Any("error", err))
				result.Failures = append(result.Failures, Failure{URL: u, Err: err})
				return nil
			}
			result.Transcripts = append(result.Transcripts, t)
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// ExpandPlaylist returns the watch URLs of every video in a playlist.
func (s *Ingestion) ExpandPlaylist(ctx context.Context, playlistURL string) ([]string, error) {
	if _, err := youtube.PlaylistID(playlistURL); err != nil {
		return nil, err
	}
	urls, err := s.source.PlaylistVideos(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("%w: list playlist: %w", domain.ErrIngestion, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: playlist %s has no videos", domain.ErrIngestion, playlistURL)
	}
	return urls, nil
}

// BuildPlaylist expands a playlist into its videos and builds them all.
func (s *Ingestion) BuildPlaylist(ctx context.Context, playlistURL string) (BatchResult, error) {
	urls, err := s.ExpandPlaylist(ctx, playlistURL)
	if err != nil {
		return BatchResult{}, err
	}
	return s.BuildMany(ctx, urls), nil
}
