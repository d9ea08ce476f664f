package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func captureDefault(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := "SELECT " + strings.Repeat("x", 500)
	got := truncateSQL(long)
	assert.LessOrEqual(t, len(got), maxSQLLength)
	assert.Contains(t, got, "...")
	assert.True(t, strings.HasPrefix(got, "SELECT "))
}

func TestSlogGormLogger_Trace(t *testing.T) {
	sql := func() (string, int64) { return "SELECT * FROM videos", 1 }
	ctx := context.Background()

	t.Run("error", func(t *testing.T) {
		buf := captureDefault(t, slog.LevelInfo)
		slogGormLogger{}.Trace(ctx, time.Now(), sql, errors.New("disk full"))
		assert.Contains(t, buf.String(), "query failed")
		assert.Contains(t, buf.String(), "disk full")
	})

	t.Run("record not found is quiet", func(t *testing.T) {
		buf := captureDefault(t, slog.LevelInfo)
		slogGormLogger{}.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
		assert.Empty(t, buf.String())
	})

	t.Run("slow query", func(t *testing.T) {
		buf := captureDefault(t, slog.LevelInfo)
		slogGormLogger{}.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
		assert.Contains(t, buf.String(), "slow query")
	})

	t.Run("debug only when enabled", func(t *testing.T) {
		buf := captureDefault(t, slog.LevelInfo)
		called := false
		slogGormLogger{}.Trace(ctx, time.Now(), func() (string, int64) {
			called = true
			return "SELECT 1", 0
		}, nil)
		assert.False(t, called)
		assert.Empty(t, buf.String())

		buf = captureDefault(t, slog.LevelDebug)
		slogGormLogger{}.Trace(ctx, time.Now(), sql, nil)
		assert.Contains(t, buf.String(), "SELECT * FROM videos")
	})
}
