package chunk

import (
	"context"

	"github.com/helixml/vidchat/domain/repository"
)

// DefaultSearchLimit is the number of matches returned when no limit is given.
const DefaultSearchLimit = 15

// Store persists chunks and answers nearest-neighbour queries.
type Store interface {
	// SaveAll persists the chunks as a single atomic batch.
	SaveAll(ctx context.Context, chunks []Chunk) error

	// Search returns the closest chunks to the vector passed via WithEmbedding,
	// ascending by L2 distance, scoped by the given conditions.
	Search(ctx context.Context, options ...repository.Option) ([]Match, error)

	// Count returns the number of chunks matching the options.
	Count(ctx context.Context, options ...repository.Option) (int64, error)

	// DeleteBy removes chunks matching the options and returns how many were removed.
	DeleteBy(ctx context.Context, options ...repository.Option) (int64, error)

	// Truncate removes every chunk.
	Truncate(ctx context.Context) error
}

// Embedder converts text into fixed-dimension embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// WithEmbedding passes a pre-computed query vector through options.
func WithEmbedding(vector []float64) repository.Option {
	return repository.WithParam("embedding", vector)
}

// EmbeddingFrom extracts the query vector from a built query.
func EmbeddingFrom(q repository.Query) ([]float64, bool) {
	v, ok := q.Param("embedding")
	if !ok {
		return nil, false
	}
	vec, ok := v.([]float64)
	return vec, ok
}

// VideoIDFrom extracts the video_id condition from a built query.
func VideoIDFrom(q repository.Query) (string, bool) {
	for _, f := range q.Filters() {
		if f.Column == "video_id" {
			id, ok := f.Value.(string)
			return id, ok
		}
	}
	return "", false
}
