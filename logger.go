package tilecache

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
)

// Logger wraps slog.Logger with tilecache-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithCache adds the cache instance id.
func (l *Logger) WithCache(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("cache", id),
	}
}

// WithBand adds a band name field to the logger.
func (l *Logger) WithBand(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("band", name),
	}
}

// LogFlush logs the outcome of flushing one or all bands.
func (l *Logger) LogFlush(ctx context.Context, bands int, err error) {
	if err != nil {
		l.WarnContext(ctx, "flush completed with failures",
			"bands", bands,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "flush completed",
			"bands", bands,
		)
	}
}

// LogBudget logs a budget change.
func (l *Logger) LogBudget(ctx context.Context, budget int64, source string) {
	l.InfoContext(ctx, "cache budget set",
		"budget", humanize.IBytes(uint64(budget)),
		"source", source,
	)
}

// LogBandOpened logs a band opened on the cache.
func (l *Logger) LogBandOpened(ctx context.Context, name string, strategy string, blocks int64) {
	l.DebugContext(ctx, "band opened",
		"band", name,
		"strategy", strategy,
		"blocks", blocks,
	)
}
