// Package observability provides structured logging and metrics collection.
//
// Logger wraps log/slog with collection-specific context fields.
// Metrics collects per-operation counters and latency points for the
// storage adapter.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog with a persistent collection field.
type Logger struct {
	inner      *slog.Logger
	collection string
}

// NewLogger creates a structured logger scoped to a collection.
// Output defaults to os.Stderr if w is nil.
func NewLogger(collection string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return &Logger{
		inner:      slog.New(handler),
		collection: collection,
	}
}

// NewLoggerWithHandler creates a logger with a custom slog handler.
func NewLoggerWithHandler(collection string, h slog.Handler) *Logger {
	return &Logger{
		inner:      slog.New(h),
		collection: collection,
	}
}

// With returns a new Logger with an additional persistent field.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{
		inner:      l.inner.With(slog.Any(key, value)),
		collection: l.collection,
	}
}

// attrs prepends the collection name to the arguments.
func (l *Logger) attrs(msg string, args []any) (string, []any) {
	return msg, append([]any{slog.String("collection", l.collection)}, args...)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Debug(msg, args...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Info(msg, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Warn(msg, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Error(msg, args...)
}

// CollectionName returns the collection this logger is scoped to.
func (l *Logger) CollectionName() string {
	return l.collection
}
