// Package logging assembles structured slog loggers and formatting helpers used
// across digestcast components.
//
// It owns the configurable console/JSON handlers, tees a JSON copy into the
// log directory, and exposes context-aware helpers so pipeline code can tag
// log lines with run IDs, senders, message IDs, and stages. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
