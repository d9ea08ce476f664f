// Package persistence provides database storage implementations.
package persistence

import (
	"context"
	"log/slog"

	"github.com/helixml/vidchat/domain/chunk"
	"github.com/helixml/vidchat/internal/database"
)

// AutoMigrate creates or updates the video and conversation tables. Chunk
// tables are created by their stores since the vector column depends on
// the backend and the embedding dimension.
func AutoMigrate(ctx context.Context, db database.Database) error {
	return db.Migrate(ctx, &VideoModel{}, &TurnModel{})
}

// NewChunkStore returns the chunk store suited to the database backend:
// pgvector on PostgreSQL, JSON vectors with in-process search on SQLite.
func NewChunkStore(ctx context.Context, db database.Database, dimension int, logger *slog.Logger) (chunk.Store, error) {
	if db.IsPostgres() {
		return NewPgvectorChunkStore(ctx, db, dimension, logger)
	}
	return NewSQLiteChunkStore(ctx, db, logger)
}
