package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	messageIDKey contextKey = "message_id"
	senderKey    contextKey = "sender"
)

// WithRunID annotates context with the pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithMessageID annotates context with the newsletter message being processed.
func WithMessageID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, messageIDKey, id)
}

// MessageIDFromContext extracts the message identifier if present.
func MessageIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(messageIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSender annotates context with a newsletter sender address.
func WithSender(ctx context.Context, sender string) context.Context {
	if sender == "" {
		return ctx
	}
	return context.WithValue(ctx, senderKey, sender)
}

// SenderFromContext returns the sender address if present.
func SenderFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(senderKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
