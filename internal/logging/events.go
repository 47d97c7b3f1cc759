package logging

import (
	"context"
	"log/slog"
)

const (
	defaultErrorHint = "see digestcast.log for details"
	defaultImpact    = "the run continues"
)

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Attributes given by the caller win over the defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...slog.Attr) {
	logEvent(logger, slog.LevelWarn, msg, eventType, true, attrs)
}

// ErrorWithContext logs an error with event_type and error_hint; impact is
// left to the caller.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...slog.Attr) {
	logEvent(logger, slog.LevelError, msg, eventType, false, attrs)
}

func logEvent(logger *slog.Logger, level slog.Level, msg, eventType string, impact bool, attrs []slog.Attr) {
	if logger == nil {
		return
	}
	attrs = withDefault(attrs, FieldEventType, eventType)
	attrs = withDefault(attrs, FieldErrorHint, defaultErrorHint)
	if impact {
		attrs = withDefault(attrs, FieldImpact, defaultImpact)
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func withDefault(attrs []slog.Attr, key, value string) []slog.Attr {
	for _, a := range attrs {
		if a.Key == key {
			return attrs
		}
	}
	return append(attrs, slog.String(key, value))
}
