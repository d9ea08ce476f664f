package conversation

import "context"

// Store persists conversation turns.
type Store interface {
	// SaveExchange writes the user turn then the bot turn in one transaction.
	SaveExchange(ctx context.Context, e Exchange) (Exchange, error)

	// Recent returns up to limit turns for the video, most recent first.
	Recent(ctx context.Context, videoID string, limit int) ([]Turn, error)

	// Find returns every turn for the video in chronological order.
	Find(ctx context.Context, videoID string) ([]Turn, error)

	// DeleteByVideo removes every turn for the video.
	DeleteByVideo(ctx context.Context, videoID string) (int64, error)
}
