// Package workdir removes leftover run directories under paths.work_dir.
package workdir

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"digestcast/internal/logging"
)

// SweepResult lists what a sweep removed and what it could not.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory with the error that kept it.
type SweepError struct {
	Path string
	Err  error
}

// SweepStale removes directories directly under dir last modified before
// now minus maxAge. Runs kept with --keep-work and runs interrupted before
// cleanup both end up here.
func SweepStale(dir string, maxAge time.Duration, now time.Time, logger *slog.Logger) SweepResult {
	var result SweepResult
	dir = strings.TrimSpace(dir)
	if dir == "" || maxAge <= 0 {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: dir, Err: err})
		}
		return result
	}

	cutoff := now.Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Err: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Err: err})
			logging.WarnWithContext(logger, "failed to remove stale work directory", "work_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.ErrorHint("check paths.work_dir permissions"),
				logging.Impact("disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed stale work directory",
			logging.String("path", path),
			logging.Duration("age", now.Sub(info.ModTime())),
			logging.String(logging.FieldEventType, "work_cleanup"),
		)
	}
	return result
}
