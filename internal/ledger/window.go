package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"digestcast/internal/newsletter"
	"digestcast/internal/services"
)

const upsertCommit = `INSERT INTO window_commits (id, window_end, committed_at) VALUES (1, ?, ?)
	ON CONFLICT (id) DO UPDATE SET window_end = excluded.window_end, committed_at = excluded.committed_at
	WHERE window_commits.window_end < excluded.window_end`

// LastCommit returns the committed window end, if any run has committed.
func (s *Store) LastCommit(ctx context.Context) (time.Time, bool, error) {
	var end int64
	err := s.db.GetContext(ctx, &end, "SELECT window_end FROM window_commits WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, storeErr("read last commit", err)
	}
	return fromNanos(end), true, nil
}

// ResolveWindow decides which receipt interval a run covers.
//
// Explicit bounds are used as given, except that the end never passes now:
// committing a future boundary would hide mail that arrives before it. A
// start alone runs until now; an end alone is rejected.
//
// Without bounds the window ends at now and starts one lookback before the
// last committed end (or before now on the first run). The overlap brings
// back messages that failed after being fetched; committed ids are dropped
// by IsProcessed.
func (s *Store) ResolveWindow(ctx context.Context, explicitStart, explicitEnd *time.Time, now time.Time) (newsletter.Window, error) {
	var w newsletter.Window
	switch {
	case explicitStart != nil && explicitEnd != nil:
		end := *explicitEnd
		if end.After(now) {
			end = now
		}
		w = newsletter.Window{Start: *explicitStart, End: end}
	case explicitStart != nil:
		w = newsletter.Window{Start: *explicitStart, End: now}
	case explicitEnd != nil:
		return w, services.Wrap(services.ErrValidation, "ledger", "resolve window", "an explicit end requires an explicit start", nil)
	default:
		last, ok, err := s.LastCommit(ctx)
		if err != nil {
			return w, err
		}
		from := now
		if ok && last.Before(now) {
			from = last
		}
		w = newsletter.Window{Start: from.Add(-s.lookback), End: now}
	}
	if err := w.Validate(); err != nil {
		return w, services.Wrap(services.ErrValidation, "ledger", "resolve window", err.Error(), nil)
	}
	return w, nil
}

// CommitWindowEnd advances the committed boundary to end. Committing a value
// at or before the current boundary leaves it unchanged.
func (s *Store) CommitWindowEnd(ctx context.Context, end time.Time) error {
	if end.IsZero() {
		return services.Wrap(services.ErrValidation, "ledger", "commit window", "end must be set", nil)
	}
	if err := s.exec(ctx, upsertCommit, toNanos(end), toNanos(time.Now())); err != nil {
		return storeErr("commit window", err)
	}
	return nil
}

// Commit records every id as processed and advances the window boundary in a
// single transaction, so a crash never leaves ids marked without the commit.
func (s *Store) Commit(ctx context.Context, ids []string, windowEnd, at time.Time) error {
	if windowEnd.IsZero() {
		return services.Wrap(services.ErrValidation, "ledger", "commit", "window end must be set", nil)
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return storeErr("begin commit", err)
		}
		defer func() { _ = tx.Rollback() }()

		insert := tx.Rebind(insertProcessed)
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, insert, id, toNanos(at)); err != nil {
				return storeErr("commit processed", fmt.Errorf("%s: %w", id, err))
			}
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(upsertCommit), toNanos(windowEnd), toNanos(at)); err != nil {
			return storeErr("commit window", err)
		}
		if err := tx.Commit(); err != nil {
			return storeErr("commit", err)
		}
		return nil
	})
}

// Stats summarizes the ledger for operator display.
type Stats struct {
	Processed  int
	LastCommit time.Time
	HasCommit  bool
}

// Stats returns counts and the current boundary.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.GetContext(ctx, &stats.Processed, "SELECT COUNT(1) FROM processed_messages"); err != nil {
		return stats, storeErr("count processed", err)
	}
	last, ok, err := s.LastCommit(ctx)
	if err != nil {
		return stats, err
	}
	stats.LastCommit, stats.HasCommit = last, ok
	return stats, nil
}
