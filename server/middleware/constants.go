package middleware

import "context"

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)

// WithRequestID returns a context carrying the given request ID.
// Used by the HTTP middleware and by the Lambda adapter, which has no
// middleware chain of its own.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID extracts the request ID from the context, returning an
// empty string when none is set.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
