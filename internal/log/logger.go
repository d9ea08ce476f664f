// Package log configures slog for vidchat and carries request-scoped
// identifiers through context.
package log

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/helixml/vidchat/internal/config"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	requestIDKey     contextKey = "request_id"
	videoIDKey       contextKey = "video_id"
)

// New builds a logger writing to w in the given format. Records logged with a
// context automatically carry its correlation, request and video ids.
func New(w io.Writer, format config.LogFormat, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch format {
	case config.LogFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = NewTerminalHandler(w, opts)
	}
	return slog.New(contextHandler{Handler: handler})
}

// Configure builds a logger from cfg and installs it as the slog default.
// Commands that speak a protocol on stdout must pass stderr.
func Configure(cfg config.AppConfig, w io.Writer) *slog.Logger {
	logger := New(w, cfg.LogFormat(), cfg.LogLevel())
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog level. Unknown names mean INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithVideoID adds the video being worked on to the context.
func WithVideoID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, videoIDKey, id)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	return stringValue(ctx, correlationIDKey)
}

// RequestID extracts the request ID from context.
func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// VideoID extracts the video ID from context.
func VideoID(ctx context.Context) string {
	return stringValue(ctx, videoIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextHandler appends context identifiers to every record.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range []contextKey{correlationIDKey, requestIDKey, videoIDKey} {
		if v := stringValue(ctx, key); v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}
