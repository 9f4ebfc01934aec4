package logger

import (
	"context"
	"log/slog"
)

// contextKey is unexported so only this package can stash a logger.
type contextKey struct{}

// With derives a context whose logger carries the extra fields. The request
// middleware uses it to pin the trace id and user id onto every downstream
// log line.
func With(ctx context.Context, fields ...any) context.Context {
	return context.WithValue(ctx, contextKey{}, From(ctx).With(fields...))
}

// From extracts the request-scoped logger, falling back to the process-wide
// one when the context carries none.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return LoggerWrapper()
}
