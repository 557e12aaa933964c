package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

// LoggerContextKey is the context key for the logger
const LoggerContextKey ContextKey = "logger"

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: ComponentApp,
	}
}

// HTTPStart logs the start of an HTTP request.
func HTTPStart(ctx context.Context, logger *Logger, r *http.Request, requestID, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithClientIP(clientIP)
	fields[FieldRequestID] = requestID
	logger.InfoContext(ctx, "Request started", fields.ToSlice()...)
}

// HTTPEnd logs the completion of an HTTP request, escalating the level for
// client and server errors.
func HTTPEnd(ctx context.Context, logger *Logger, r *http.Request, requestID string, statusCode int, durationMs int64) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400)
	fields[FieldRequestID] = requestID
	logger.Logger.Log(ctx, level, "Request completed", fields.ToSlice()...)
}
