package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// TerminalHandler writes one human-readable line per record:
//
//	15:04:05.000 INF chatroom created video_id=abc123
//
// Colour is used only when the writer is a terminal and NO_COLOR is unset.
type TerminalHandler struct {
	w      io.Writer
	level  slog.Leveler
	colour bool
	prefix []slog.Attr
	groups []string
	mu     *sync.Mutex
}

// NewTerminalHandler creates a TerminalHandler.
func NewTerminalHandler(w io.Writer, opts *slog.HandlerOptions) *TerminalHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &TerminalHandler{
		w:      w,
		level:  level,
		colour: isColourTerminal(w),
		mu:     &sync.Mutex{},
	}
}

func isColourTerminal(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Enabled reports whether the handler handles records at the given level.
func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes the record.
func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.styled(&buf, ansiDim, ts.Format("15:04:05.000"))
	buf.WriteByte(' ')

	colour, label := levelLabel(r.Level)
	h.styled(&buf, colour, label)
	buf.WriteByte(' ')
	h.styled(&buf, ansiBold, r.Message)

	for _, a := range h.prefix {
		h.writeAttr(&buf, a, h.groups)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, a, h.groups)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs returns a handler that prefixes every record with attrs.
func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.prefix = append(append([]slog.Attr{}, h.prefix...), attrs...)
	return &clone
}

// WithGroup returns a handler that qualifies subsequent keys with name.
func (h *TerminalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *TerminalHandler) styled(buf *bytes.Buffer, style, s string) {
	if !h.colour {
		buf.WriteString(s)
		return
	}
	buf.WriteString(style)
	buf.WriteString(s)
	buf.WriteString(ansiReset)
}

func (h *TerminalHandler) writeAttr(buf *bytes.Buffer, a slog.Attr, groups []string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := groups
		if a.Key != "" {
			inner = append(append([]string{}, groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(buf, ga, inner)
		}
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	buf.WriteByte(' ')
	h.styled(buf, ansiDim, key+"=")
	buf.WriteString(quoteIfNeeded(a.Value))
}

func levelLabel(level slog.Level) (string, string) {
	switch {
	case level < slog.LevelInfo:
		return ansiCyan, "DBG"
	case level < slog.LevelWarn:
		return ansiGreen, "INF"
	case level < slog.LevelError:
		return ansiYellow, "WRN"
	default:
		return ansiRed, "ERR"
	}
}

func quoteIfNeeded(v slog.Value) string {
	s := v.String()
	if v.Kind() == slog.KindString && strings.ContainsAny(s, " \t\n\"\\=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
