package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxSQLLength       = 200
	slowQueryThreshold = 500 * time.Millisecond
)

// slogGormLogger routes GORM logging through the default slog logger using
// the query context, so request and video ids are attached to SQL lines.
// Queries log at Debug, slow queries at Warn, failures at Error.
type slogGormLogger struct{}

// LogMode is a no-op; slog decides what is emitted.
func (l slogGormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

// Info logs informational messages from GORM.
func (l slogGormLogger) Info(ctx context.Context, msg string, args ...any) {
	slog.InfoContext(ctx, fmt.Sprintf(msg, args...))
}

// Warn logs warnings from GORM.
func (l slogGormLogger) Warn(ctx context.Context, msg string, args ...any) {
	slog.WarnContext(ctx, fmt.Sprintf(msg, args...))
}

// Error logs errors from GORM.
func (l slogGormLogger) Error(ctx context.Context, msg string, args ...any) {
	slog.ErrorContext(ctx, fmt.Sprintf(msg, args...))
}

// truncateSQL keeps the head and tail of long statements.
func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	half := (maxSQLLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}

// Trace is called by GORM after every statement. gorm.ErrRecordNotFound is
// the normal result of First on an empty set and is not reported as an error.
func (l slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		slog.ErrorContext(ctx, "query failed",
			slog.String("sql", truncateSQL(sql)),
			slog.Int64("rows", rows),
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)
	case elapsed > slowQueryThreshold:
		sql, rows := fc()
		slog.WarnContext(ctx, "slow query",
			slog.String("sql", truncateSQL(sql)),
			slog.Int64("rows", rows),
			slog.Duration("duration", elapsed),
		)
	case slog.Default().Enabled(ctx, slog.LevelDebug):
		sql, rows := fc()
		slog.DebugContext(ctx, "query",
			slog.String("sql", truncateSQL(sql)),
			slog.Int64("rows", rows),
			slog.Duration("duration", elapsed),
		)
	}
}
