package services

import "context"

type contextKey string

const (
	actionIDKey  contextKey = "action_id"
	requestIDKey contextKey = "request_id"
)

// WithActionID annotates context with the capture action identifier.
func WithActionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, actionIDKey, id)
}

// ActionIDFromContext returns the capture action identifier if present.
func ActionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(actionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
