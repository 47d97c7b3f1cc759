package logging

import (
	"context"
	"log/slog"

	"digestcast/internal/services"
)

// Structured field keys shared by every component.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldMessageID = "message_id"
	FieldSender    = "sender"
	FieldStage     = "stage"
	// FieldEventType classifies a warning or error for filtering (e.g. "fetch_failed").
	FieldEventType = "event_type"
	// FieldErrorHint is the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is what the problem costs the listener.
	FieldImpact = "impact"
)

// ContextFields returns the run, sender and message coordinates stored on ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, RunID(id))
	}
	if sender, ok := services.SenderFromContext(ctx); ok {
		fields = append(fields, Sender(sender))
	}
	if id, ok := services.MessageIDFromContext(ctx); ok {
		fields = append(fields, MessageID(id))
	}
	return fields
}

// WithContext returns logger annotated with ContextFields(ctx).
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return logger.With(args...)
}
