// Package testdb opens throwaway SQLite databases for tests.
package testdb

import (
	"context"
	"testing"

	"github.com/helixml/vidchat/infrastructure/persistence"
	"github.com/helixml/vidchat/internal/database"
)

// New returns an in-memory database with every vidchat table migrated.
// The database is closed by t.Cleanup.
func New(t *testing.T) database.Database {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDatabase(ctx, "sqlite:///:memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := persistence.AutoMigrate(ctx, db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
