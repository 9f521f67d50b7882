package cbir

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with cbir-specific fields.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
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

// NewJSONLogger creates a Logger that outputs JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithCollection adds storage and index fields.
func (l *Logger) WithCollection(storage, index string) *Logger {
	return &Logger{
		Logger: l.Logger.With("storage", storage, "index", index),
	}
}

// LogIndex logs an index operation.
func (l *Logger) LogIndex(ctx context.Context, names []string, labels []int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index failed",
			"names", names,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "images indexed",
		"names", names,
		"labels", labels,
	)
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(ctx context.Context, name string, label int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "image removed",
		"name", name,
		"label", label,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, found, dropped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
		return
	}
	if dropped > 0 {
		l.WarnContext(ctx, "search dropped unresolvable labels",
			"k", k,
			"results", found,
			"dropped", dropped,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"results", found,
	)
}

// LogMultiSearch logs a multi-collection search.
func (l *Logger) LogMultiSearch(ctx context.Context, collections, k, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "multi-search failed",
			"collections", collections,
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "multi-search completed",
		"collections", collections,
		"k", k,
		"results", found,
	)
}
