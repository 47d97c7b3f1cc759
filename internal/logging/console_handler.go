package logging

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one header line per record,
//
//	2024-03-01 09:00:00 INFO [pipeline] Message abc123 (synthesize) - message skipped
//
// followed by an indented "key: value" line for every remaining field.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	prefix    string
	fields    []field
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	fields := slices.Clone(h.fields)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendField(fields, h.prefix, a)
		return true
	})
	fields = lastWins(fields)

	var component, messageID, stage string
	shown := make([]field, 0, len(fields))
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = formatValue(f.value, false)
			continue
		case FieldMessageID:
			messageID = formatValue(f.value, false)
		case FieldStage:
			stage = formatValue(f.value, false)
		}
		if r.Level >= slog.LevelInfo && hiddenAtInfo(f.key) {
			continue
		}
		shown = append(shown, f)
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(formatTimestamp(ts))
	b.WriteString(" ")
	b.WriteString(levelLabel(r.Level))
	if component != "" {
		fmt.Fprintf(&b, " [%s]", component)
	}
	if s := subject(messageID, stage); s != "" {
		b.WriteString(" ")
		b.WriteString(s)
	}
	b.WriteString(" - ")
	b.WriteString(cmp.Or(strings.TrimSpace(r.Message), "(no message)"))
	if h.addSource {
		if src := r.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteString("\n")
	for _, f := range shown {
		fmt.Fprintf(&b, "    %s: %s\n", f.key, formatValue(f.value, true))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.fields = slices.Clone(h.fields)
	for _, a := range attrs {
		next.fields = appendField(next.fields, h.prefix, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// hiddenAtInfo keeps run plumbing out of info-level console output; the
// message id and stage already appear in the header. JSON output carries
// every field.
func hiddenAtInfo(key string) bool {
	return key == FieldRunID || key == FieldMessageID || key == FieldStage
}

func appendField(dst []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, member := range a.Value.Group() {
			dst = appendField(dst, prefix, member)
		}
		return dst
	}
	if a.Key == "" {
		return dst
	}
	return append(dst, field{key: prefix + a.Key, value: a.Value})
}

// lastWins drops repeated keys, keeping the first position and the last value.
func lastWins(fields []field) []field {
	pos := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if i, ok := pos[f.key]; ok {
			out[i].value = f.value
			continue
		}
		pos[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func subject(messageID, stage string) string {
	id := shortID(messageID)
	stage = strings.TrimSpace(stage)
	switch {
	case id != "" && stage != "":
		return "Message " + id + " (" + stage + ")"
	case id != "":
		return "Message " + id
	default:
		return stage
	}
}

func shortID(id string) string {
	runes := []rune(strings.Trim(strings.TrimSpace(id), "<>"))
	if len(runes) > 16 {
		return string(runes[:16]) + "…"
	}
	return string(runes)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
