package obs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// SlogLogger bridges Logger to a structured slog.Logger. Formatted
// messages are emitted as the record message.
type SlogLogger struct {
	L *slog.Logger
}

// NewSlogLogger builds a JSON or text slog logger writing to w.
func NewSlogLogger(w io.Writer, app string, min Level, json bool) SlogLogger {
	opts := &slog.HandlerOptions{Level: slogLevel(min)}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return SlogLogger{L: slog.New(h).With("app", app)}
}

func (s SlogLogger) Enabled(level Level) bool {
	return s.L != nil && s.L.Enabled(context.Background(), slogLevel(level))
}

func (s SlogLogger) Logf(level Level, format string, args ...interface{}) {
	if s.L == nil {
		return
	}
	ctx := context.Background()
	lvl := slogLevel(level)
	if !s.L.Enabled(ctx, lvl) {
		return
	}
	s.L.Log(ctx, lvl, fmt.Sprintf(format, args...))
}

func slogLevel(l Level) slog.Level {
	switch l {
	case Debug:
		return slog.LevelDebug
	case Warn:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
