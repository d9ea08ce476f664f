// Package service holds domain services that combine stores with providers.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/chunk"
	"github.com/helixml/vidchat/domain/repository"
)

// VectorIndex is the durable, video-scoped nearest-neighbour index over
// transcript chunks.
type VectorIndex struct {
	store    chunk.Store
	embedder chunk.Embedder
	logger   *slog.Logger
}

// NewVectorIndex creates a VectorIndex.
func NewVectorIndex(store chunk.Store, embedder chunk.Embedder, logger *slog.Logger) (*VectorIndex, error) {
	if store == nil {
		return nil, fmt.Errorf("NewVectorIndex: nil store")
	}
	if embedder == nil {
		return nil, fmt.Errorf("NewVectorIndex: nil embedder")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorIndex{store: store, embedder: embedder, logger: logger}, nil
}

// Dimension returns the embedding dimension of the index.
func (x *VectorIndex) Dimension() int {
	return x.embedder.Dimension()
}

// Insert embeds texts in one batch and persists them as chunks of videoID.
// Nothing is written unless every input is valid and every vector is produced.
// metadata may be nil; otherwise it must hold one non-nil map per text.
func (x *VectorIndex) Insert(ctx context.Context, texts []string, videoID string, metadata []map[string]any) (int, error) {
	if len(texts) == 0 {
		return 0, fmt.Errorf("%w: no texts to insert", domain.ErrValidation)
	}
	if strings.TrimSpace(videoID) == "" {
		return 0, fmt.Errorf("%w: video id is required", domain.ErrValidation)
	}
	if metadata != nil {
		if len(metadata) != len(texts) {
			return 0, fmt.Errorf("%w: got %d metadata entries for %d texts", domain.ErrValidation, len(metadata), len(texts))
		}
		for i, m := range metadata {
			if m == nil {
				return 0, fmt.Errorf("%w: metadata at index %d is missing", domain.ErrValidation, i)
			}
		}
	}

	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embed chunks: count mismatch: got %d, expected %d", len(vectors), len(texts))
	}

	dim := x.embedder.Dimension()
	chunks := make([]chunk.Chunk, len(texts))
	for i, text := range texts {
		if len(vectors[i]) != dim {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, index expects %d", domain.ErrValidation, i, len(vectors[i]), dim)
		}
		var meta map[string]any
		if metadata != nil {
			meta = metadata[i]
		}
		chunks[i] = chunk.NewChunk(videoID, text, vectors[i], meta)
	}

	if err := x.store.SaveAll(ctx, chunks); err != nil {
		return 0, fmt.Errorf("save chunks: %w", err)
	}
	return len(chunks), nil
}

// SimilaritySearch returns up to limit chunks of videoID closest to query,
// ascending by distance. An embedding failure yields no results rather than
// an error; storage failures are returned.
func (x *VectorIndex) SimilaritySearch(ctx context.Context, query, videoID string, limit int) ([]chunk.Match, error) {
	if limit <= 0 {
		limit = chunk.DefaultSearchLimit
	}
	if strings.TrimSpace(query) == "" {
		return []chunk.Match{}, nil
	}

	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		x.logger.Warn("query embedding failed", slog.String("video_id", videoID), slog.String("error", err.Error()))
		return []chunk.Match{}, nil
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return []chunk.Match{}, nil
	}

	matches, err := x.store.Search(ctx,
		chunk.WithEmbedding(vectors[0]),
		repository.WithVideoID(videoID),
		repository.WithLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if matches == nil {
		return []chunk.Match{}, nil
	}
	return matches, nil
}

// Count returns the number of chunks stored for videoID.
func (x *VectorIndex) Count(ctx context.Context, videoID string) (int64, error) {
	return x.store.Count(ctx, repository.WithVideoID(videoID))
}

// Delete removes every chunk of videoID and reports how many were removed.
// Deleting an already-empty video removes nothing and is not an error.
func (x *VectorIndex) Delete(ctx context.Context, videoID string) (int64, error) {
	if strings.TrimSpace(videoID) == "" {
		return 0, fmt.Errorf("%w: video id is required", domain.ErrValidation)
	}
	n, err := x.store.DeleteBy(ctx, repository.WithVideoID(videoID))
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	return n, nil
}

// Clear removes every chunk of every video.
func (x *VectorIndex) Clear(ctx context.Context) error {
	if err := x.store.Truncate(ctx); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	x.logger.Warn("vector index cleared")
	return nil
}
