package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helixml/vidchat/domain/chunk"
	"github.com/helixml/vidchat/domain/repository"
	"github.com/helixml/vidchat/internal/database"
	"gorm.io/gorm"
)

const saveAllBatchSize = 100

// SQLiteChunkStore implements chunk.Store for SQLite. Vectors are stored as
// JSON and nearest-neighbour search runs in process over the scoped rows.
type SQLiteChunkStore struct {
	database.Repository[chunk.Chunk, ChunkModel]
	logger *slog.Logger
}

// NewSQLiteChunkStore creates the chunk table if needed.
func NewSQLiteChunkStore(ctx context.Context, db database.Database, logger *slog.Logger) (*SQLiteChunkStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.Migrate(ctx, &ChunkModel{}); err != nil {
		return nil, fmt.Errorf("create chunk table: %w", err)
	}
	return &SQLiteChunkStore{
		Repository: database.NewRepository[chunk.Chunk, ChunkModel](db, sqliteChunkMapper{}, "chunk"),
		logger:     logger,
	}, nil
}

// SaveAll inserts the chunks in one transaction.
func (s *SQLiteChunkStore) SaveAll(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := make([]ChunkModel, len(chunks))
	for i, c := range chunks {
		models[i] = s.Mapper().ToModel(c)
	}
	return s.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(models, saveAllBatchSize).Error
	})
}

// Search returns the chunks nearest to the query vector.
func (s *SQLiteChunkStore) Search(ctx context.Context, options ...repository.Option) ([]chunk.Match, error) {
	q := repository.Build(options...)
	query, ok := chunk.EmbeddingFrom(q)
	if !ok || len(query) == 0 {
		return []chunk.Match{}, nil
	}
	limit := q.Limit()
	if limit <= 0 {
		limit = chunk.DefaultSearchLimit
	}

	var rows []ChunkModel
	db := database.ApplyConditions(s.DB(ctx), options...).Select("id", "text", "embedding")
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load chunk vectors: %w", err)
	}

	vectors := make([]storedVector, 0, len(rows))
	for _, r := range rows {
		if len(r.Embedding) != len(query) {
			s.logger.Warn("skipping chunk with mismatched dimension",
				slog.String("chunk_id", r.ID),
				slog.Int("dimension", len(r.Embedding)),
				slog.Int("expected", len(query)),
			)
			continue
		}
		vectors = append(vectors, storedVector{id: r.ID, text: r.Text, embedding: r.Embedding})
	}

	hits := nearest(query, vectors, limit)
	matches := make([]chunk.Match, len(hits))
	for i, h := range hits {
		matches[i] = chunk.NewMatch(h.id, h.text, h.distance)
	}
	return matches, nil
}

// Truncate removes every chunk.
func (s *SQLiteChunkStore) Truncate(ctx context.Context) error {
	err := s.DB(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ChunkModel{}).Error
	if err != nil {
		return fmt.Errorf("truncate chunks: %w", err)
	}
	return nil
}

var _ chunk.Store = (*SQLiteChunkStore)(nil)
