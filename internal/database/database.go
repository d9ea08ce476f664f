// Package database opens GORM connections to SQLite or PostgreSQL and
// provides the generic repository the stores are built on.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrUnsupportedDriver is returned for a URL that is neither SQLite nor
// PostgreSQL.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Database is an open connection pool. The zero value is not usable.
type Database struct {
	db *gorm.DB
}

// NewDatabase connects to url and pings it. Accepted forms are
// sqlite:///path/to/file.db, sqlite:///:memory: and postgres:// or
// postgresql:// DSNs. SQL statements are logged through slog at Debug.
func NewDatabase(ctx context.Context, url string) (Database, error) {
	dialector, err := parseDialector(url)
	if err != nil {
		return Database{}, fmt.Errorf("parse database url: %w", err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: slogGormLogger{}})
	if err != nil {
		return Database{}, fmt.Errorf("open database: %w", err)
	}
	pool, err := db.DB()
	if err != nil {
		return Database{}, fmt.Errorf("open database: %w", err)
	}
	// Each connection to :memory: gets its own empty database.
	if strings.HasSuffix(url, ":memory:") {
		pool.SetMaxOpenConns(1)
	}
	if err := pool.PingContext(ctx); err != nil {
		return Database{}, errors.Join(fmt.Errorf("ping database: %w", err), pool.Close())
	}
	return Database{db: db}, nil
}

// Session returns a GORM handle bound to ctx.
func (d Database) Session(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// Driver names the backend: "sqlite" or "postgres".
func (d Database) Driver() string { return d.db.Name() }

// IsPostgres reports whether the backend is PostgreSQL.
func (d Database) IsPostgres() bool { return d.Driver() == "postgres" }

// Migrate creates or alters the tables of models.
func (d Database) Migrate(ctx context.Context, models ...any) error {
	if err := d.Session(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close releases the pool.
func (d Database) Close() error {
	pool, err := d.db.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

func parseDialector(url string) (gorm.Dialector, error) {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return nil, ErrUnsupportedDriver
	}
	switch scheme {
	case "sqlite":
		path := strings.TrimPrefix(rest, "/")
		if path == "" {
			return nil, fmt.Errorf("%w: empty sqlite path", ErrUnsupportedDriver)
		}
		return sqlite.Open(path), nil
	case "postgres", "postgresql":
		return postgres.Open(url), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, scheme)
	}
}
