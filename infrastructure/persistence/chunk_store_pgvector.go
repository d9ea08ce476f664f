package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/helixml/vidchat/domain/chunk"
	"github.com/helixml/vidchat/domain/repository"
	"github.com/helixml/vidchat/internal/database"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// SQL specific to pgvector.
const (
	pgvCreateExtension = `CREATE EXTENSION IF NOT EXISTS vector`

	pgvCreateTableTemplate = `
CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(36) PRIMARY KEY,
    video_id VARCHAR(64) NOT NULL,
    text TEXT NOT NULL,
    embedding VECTOR(%d) NOT NULL,
    metadata JSONB
)`

	pgvCreateVideoIndexTemplate = `CREATE INDEX IF NOT EXISTS %s_video_id_idx ON %s (video_id)`

	pgvCreateVectorIndexTemplate = `
CREATE INDEX IF NOT EXISTS %s_embedding_idx
ON %s
USING hnsw (embedding vector_l2_ops)`

	pgvCheckDimensionTemplate = `
SELECT a.atttypmod AS dimension
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
WHERE c.relname = '%s'
AND a.attname = 'embedding'`
)

var (
	// ErrPgvectorInitializationFailed indicates pgvector setup failed.
	ErrPgvectorInitializationFailed = errors.New("failed to initialize pgvector store")

	// ErrDimensionMismatch indicates the stored vector size differs from the embedder's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// PgvectorChunkStore implements chunk.Store on PostgreSQL with pgvector.
type PgvectorChunkStore struct {
	database.Repository[chunk.Chunk, PgChunkModel]
	logger *slog.Logger
}

// NewPgvectorChunkStore installs the extension, creates the table and
// indexes, and verifies the column dimension matches dimension.
func NewPgvectorChunkStore(ctx context.Context, db database.Database, dimension int, logger *slog.Logger) (*PgvectorChunkStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrPgvectorInitializationFailed, dimension)
	}

	raw := db.Session(ctx)
	if err := raw.Exec(pgvCreateExtension).Error; err != nil {
		return nil, errors.Join(ErrPgvectorInitializationFailed, fmt.Errorf("create extension: %w", err))
	}
	if err := raw.Exec(fmt.Sprintf(pgvCreateTableTemplate, chunkTable, dimension)).Error; err != nil {
		return nil, errors.Join(ErrPgvectorInitializationFailed, fmt.Errorf("create table: %w", err))
	}
	if err := raw.Exec(fmt.Sprintf(pgvCreateVideoIndexTemplate, chunkTable, chunkTable)).Error; err != nil {
		return nil, errors.Join(ErrPgvectorInitializationFailed, fmt.Errorf("create video index: %w", err))
	}
	if err := raw.Exec(fmt.Sprintf(pgvCreateVectorIndexTemplate, chunkTable, chunkTable)).Error; err != nil {
		logger.Warn("failed to create vector index (may already exist)", slog.Any("error", err))
	}

	var stored int
	result := raw.Raw(fmt.Sprintf(pgvCheckDimensionTemplate, chunkTable)).Scan(&stored)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, errors.Join(ErrPgvectorInitializationFailed, fmt.Errorf("check dimension: %w", result.Error))
	}
	if result.RowsAffected > 0 && stored != dimension {
		return nil, fmt.Errorf("%w: database has %d, embedder has %d", ErrDimensionMismatch, stored, dimension)
	}

	return &PgvectorChunkStore{
		Repository: database.NewRepository[chunk.Chunk, PgChunkModel](db, pgChunkMapper{}, "chunk"),
		logger:     logger,
	}, nil
}

// SaveAll inserts the chunks in one transaction.
func (s *PgvectorChunkStore) SaveAll(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := make([]PgChunkModel, len(chunks))
	for i, c := range chunks {
		models[i] = s.Mapper().ToModel(c)
	}
	return s.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(models, saveAllBatchSize).Error
	})
}

// Search orders the scoped rows by L2 distance to the query vector.
func (s *PgvectorChunkStore) Search(ctx context.Context, options ...repository.Option) ([]chunk.Match, error) {
	q := repository.Build(options...)
	query, ok := chunk.EmbeddingFrom(q)
	if !ok || len(query) == 0 {
		return []chunk.Match{}, nil
	}
	limit := q.Limit()
	if limit <= 0 {
		limit = chunk.DefaultSearchLimit
	}

	vec := pgvector.NewVector(toFloat32(query))
	tx := s.DB(ctx).Select("id, text, embedding <-> ? AS distance", vec)
	tx = database.ApplyConditions(tx, options...)
	tx = tx.Order("distance ASC").Order("id ASC").Limit(limit)

	var rows []struct {
		ID       string  `gorm:"column:id"`
		Text     string  `gorm:"column:text"`
		Distance float64 `gorm:"column:distance"`
	}
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	matches := make([]chunk.Match, len(rows))
	for i, r := range rows {
		matches[i] = chunk.NewMatch(r.ID, r.Text, r.Distance)
	}
	return matches, nil
}

// Truncate removes every chunk.
func (s *PgvectorChunkStore) Truncate(ctx context.Context) error {
	if err := s.DB(ctx).Exec(fmt.Sprintf("TRUNCATE TABLE %s", chunkTable)).Error; err != nil {
		return fmt.Errorf("truncate chunks: %w", err)
	}
	return nil
}

var _ chunk.Store = (*PgvectorChunkStore)(nil)
