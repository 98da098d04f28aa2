package logger

import "context"

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
)

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithRequestID tags ctx with the correlation id of one request cycle.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation id of ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FromContext returns the logger stored in ctx, or fallback when there is
// none, with the request id of ctx attached.
func FromContext(ctx context.Context, fallback Logger) Logger {
	l, ok := ctx.Value(loggerKey).(Logger)
	if !ok {
		l = fallback
	}
	if l == nil {
		l = Nop()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}

// L is FromContext with a discarding fallback.
func L(ctx context.Context) Logger {
	return FromContext(ctx, nil)
}
