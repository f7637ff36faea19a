package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context, falling back to
// the process default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: ComponentApp,
	}
}

// StructuredLogger writes the fixed-shape records for requests, imports
// and categorization runs.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// loggerFor prefers the request-scoped logger so records carry its request id.
func (sl *StructuredLogger) loggerFor(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return sl.logger
}

// LogHTTPStart logs the start of an HTTP request
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP)

	sl.loggerFor(ctx).DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs the completion of an HTTP request. 4xx records are warnings
// and 5xx records errors.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	logger := sl.loggerFor(ctx)
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(logger.component)

	logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogImport records the outcome of one CSV upload.
func (sl *StructuredLogger) LogImport(ctx context.Context, importID, filename string, inserted, duplicates, skipped int) {
	fields := NewFields().
		WithImport(importID, filename).
		WithOperation(OpImport).
		With("inserted", inserted).
		With("duplicates", duplicates).
		With("skipped", skipped)

	sl.loggerFor(ctx).WithComponent(ComponentImport).InfoContext(ctx, "CSV import stored", fields.ToSlice()...)
}

// LogCategorization records the summary of one categorization pass.
func (sl *StructuredLogger) LogCategorization(ctx context.Context, scanned, categorized, ignored, unmatched int, dryRun bool) {
	fields := NewFields().
		WithOperation(OpCategorize).
		With("scanned", scanned).
		With("categorized", categorized).
		With("ignored", ignored).
		With("unmatched", unmatched).
		With("dry_run", dryRun)

	sl.loggerFor(ctx).WithComponent(ComponentCategory).InfoContext(ctx, "Categorization finished", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)

	sl.loggerFor(ctx).WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}
