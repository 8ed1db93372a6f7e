package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
)

// WithLogger attaches logger to ctx. A nil logger attaches the default.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger attached to ctx, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l := attached(ctx); l != nil {
		return l
	}
	return Default()
}

// HasLogger reports whether ctx carries its own logger.
func HasLogger(ctx context.Context) bool {
	return attached(ctx) != nil
}

func attached(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(loggerKey).(*zerolog.Logger)
	return l
}

// with derives a child of the context logger and attaches it.
func with(ctx context.Context, fn func(zerolog.Context) zerolog.Context) context.Context {
	l := fn(FromContext(ctx).With()).Logger()
	return WithLogger(ctx, &l)
}

// WithRequestID stores an HTTP request id and tags the logger with it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("request_id", requestID)
	})
}

// RequestID returns the request id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithJob tags the context logger with a reconciliation job id.
func WithJob(ctx context.Context, jobID string) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("job_id", jobID)
	})
}

// WithEntityType tags the context logger with the entity type. An empty
// type leaves ctx unchanged.
func WithEntityType(ctx context.Context, entityType string) context.Context {
	if entityType == "" {
		return ctx
	}
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("entity_type", entityType)
	})
}

// WithOperation tags the context logger with an engine operation name.
func WithOperation(ctx context.Context, operation string) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("operation", operation)
	})
}
