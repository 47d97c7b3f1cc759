package logging

import (
	"log/slog"
	"time"
)

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Float64(key string, value float64) slog.Attr { return slog.Float64(key, value) }

func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

// Error records err under "error". A nil error is written as "<nil>" so the
// key is never silently missing.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Pipeline coordinates.

func RunID(id string) slog.Attr { return slog.String(FieldRunID, id) }

func MessageID(id string) slog.Attr { return slog.String(FieldMessageID, id) }

func Sender(address string) slog.Attr { return slog.String(FieldSender, address) }

func Stage(name string) slog.Attr { return slog.String(FieldStage, name) }

func Impact(text string) slog.Attr { return slog.String(FieldImpact, text) }

func ErrorHint(text string) slog.Attr { return slog.String(FieldErrorHint, text) }
