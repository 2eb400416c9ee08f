package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ActionKey is the context key for assist action names.
	ActionKey contextKey = "action"

	// SessionKey is the context key for relay session identifiers.
	SessionKey contextKey = "session"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithAction adds an assist action name to the context.
func WithAction(ctx context.Context, action string) context.Context {
	return context.WithValue(ctx, ActionKey, action)
}

// GetAction retrieves the assist action name from the context.
func GetAction(ctx context.Context) string {
	if action, ok := ctx.Value(ActionKey).(string); ok {
		return action
	}
	return ""
}

// WithSession adds a relay session identifier to the context.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// GetSession retrieves the relay session identifier from the context.
func GetSession(ctx context.Context) string {
	if session, ok := ctx.Value(SessionKey).(string); ok {
		return session
	}
	return ""
}

// FromContext returns logger extended with the fields carried in ctx.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	if action := GetAction(ctx); action != "" {
		logger = logger.With("action", action)
	}
	if session := GetSession(ctx); session != "" {
		logger = logger.With("session", session)
	}
	return logger
}
