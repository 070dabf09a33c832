package slabmem

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/slabmem/report"
)

// Logger wraps slog.Logger with slabmem-specific context.
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
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithMode adds the allocator mode to the logger.
func (l *Logger) WithMode(debug bool) *Logger {
	mode := "release"
	if debug {
		mode = "debug"
	}
	return &Logger{
		Logger: l.Logger.With("mode", mode),
	}
}

// LogLeaks logs the outcome of a teardown leak scan.
func (l *Logger) LogLeaks(ctx context.Context, leaks []report.Leak) {
	if len(leaks) == 0 {
		l.DebugContext(ctx, "no leaks detected")
		return
	}
	s := report.Summarize(leaks)
	l.WarnContext(ctx, "leaks detected",
		"count", s.Count,
		"bytes", s.Bytes,
		"sites", len(s.BySite),
	)
}

// LogReport logs the persistence of a leak report.
func (l *Logger) LogReport(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "leak report failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "leak report stored",
			"name", name,
		)
	}
}

// LogConfigurationMismatch logs a CheckConfiguration failure.
func (l *Logger) LogConfigurationMismatch(ctx context.Context, got, want uint32) {
	l.WarnContext(ctx, "configuration mismatch",
		"token", got,
		"expected", want,
	)
}
