package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"digestcast/internal/ledger"
	"digestcast/internal/services"
)

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"), 24*time.Hour)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ptr(t time.Time) *time.Time { return &t }

func TestResolveWindowFirstRunUsesLookback(t *testing.T) {
	store := openStore(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	w, err := store.ResolveWindow(context.Background(), nil, nil, now)
	if err != nil {
		t.Fatalf("ResolveWindow: %v", err)
	}
	if !w.Start.Equal(now.Add(-24*time.Hour)) || !w.End.Equal(now) {
		t.Fatalf("unexpected window %s", w)
	}
}

func TestResolveWindowStartsAtLastCommit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	committed := time.Date(2024, 3, 9, 6, 30, 0, 0, time.UTC)
	if err := store.CommitWindowEnd(ctx, committed); err != nil {
		t.Fatalf("CommitWindowEnd: %v", err)
	}

	now := committed.Add(30 * time.Hour)
	w, err := store.ResolveWindow(ctx, nil, nil, now)
	if err != nil {
		t.Fatalf("ResolveWindow: %v", err)
	}
	if !w.Start.Equal(committed.Add(-24*time.Hour)) || !w.End.Equal(now) {
		t.Fatalf("window %s should overlap the last commit by the lookback", w)
	}
}

func TestResolveWindowToleratesFutureCommit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	if err := store.CommitWindowEnd(ctx, now.Add(6*time.Hour)); err != nil {
		t.Fatalf("CommitWindowEnd: %v", err)
	}

	w, err := store.ResolveWindow(ctx, nil, nil, now)
	if err != nil {
		t.Fatalf("ResolveWindow: %v", err)
	}
	if !w.Start.Equal(now.Add(-24*time.Hour)) || !w.End.Equal(now) {
		t.Fatalf("unexpected window %s", w)
	}
}

func TestResolveWindowExplicitBounds(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		start     *time.Time
		end       *time.Time
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{name: "both", start: ptr(start), end: ptr(end), wantStart: start, wantEnd: end},
		{name: "end capped at now", start: ptr(now.Add(-2 * time.Hour)), end: ptr(now.Add(12 * time.Hour)), wantStart: now.Add(-2 * time.Hour), wantEnd: now},
		{name: "start in the future", start: ptr(now.Add(time.Hour)), end: ptr(now.Add(2 * time.Hour)), wantErr: true},
		{name: "start only", start: ptr(start), wantStart: start, wantEnd: now},
		{name: "end only", end: ptr(end), wantErr: true},
		{name: "inverted", start: ptr(end), end: ptr(start), wantErr: true},
		{name: "empty", start: ptr(start), end: ptr(start), wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, err := store.ResolveWindow(ctx, tc.start, tc.end, now)
			if tc.wantErr {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveWindow: %v", err)
			}
			if !w.Start.Equal(tc.wantStart) || !w.End.Equal(tc.wantEnd) {
				t.Fatalf("unexpected window %s", w)
			}
		})
	}
}

func TestCommitWindowEndIsMonotonic(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	later := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-48 * time.Hour)

	if err := store.CommitWindowEnd(ctx, later); err != nil {
		t.Fatalf("commit later: %v", err)
	}
	if err := store.CommitWindowEnd(ctx, earlier); err != nil {
		t.Fatalf("commit earlier: %v", err)
	}
	got, ok, err := store.LastCommit(ctx)
	if err != nil || !ok {
		t.Fatalf("LastCommit: ok=%v err=%v", ok, err)
	}
	if !got.Equal(later) {
		t.Fatalf("boundary moved backwards: %s", got)
	}
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	first := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	processed, err := store.IsProcessed(ctx, "msg-1")
	if err != nil || processed {
		t.Fatalf("fresh ledger reported processed=%v err=%v", processed, err)
	}
	if err := store.MarkProcessed(ctx, "msg-1", first); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if err := store.MarkProcessed(ctx, "msg-1", first.Add(time.Hour)); err != nil {
		t.Fatalf("second MarkProcessed: %v", err)
	}
	processed, err = store.IsProcessed(ctx, "msg-1")
	if err != nil || !processed {
		t.Fatalf("expected processed, got %v err=%v", processed, err)
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || !recent[0].ProcessedAt.Equal(first) {
		t.Fatalf("unexpected records %+v", recent)
	}
}

func TestCommitRecordsIDsAndBoundaryTogether(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	end := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	if err := store.Commit(ctx, []string{"a", "b", "a"}, end, end.Add(time.Minute)); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Processed != 2 {
		t.Fatalf("expected 2 processed, got %d", stats.Processed)
	}
	if !stats.HasCommit || !stats.LastCommit.Equal(end) {
		t.Fatalf("unexpected boundary %+v", stats)
	}
}

func TestReopenPreservesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()
	store, err := ledger.OpenSQLite(ctx, path, time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.MarkProcessed(ctx, "persisted", time.Now()); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	_ = store.Close()

	reopened, err := ledger.OpenSQLite(ctx, path, time.Hour)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	ok, err := reopened.IsProcessed(ctx, "persisted")
	if err != nil || !ok {
		t.Fatalf("expected record to survive reopen, ok=%v err=%v", ok, err)
	}
}

func TestRunLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "run.lock")
	first, err := ledger.AcquireRunLock(path)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := ledger.AcquireRunLock(path); !errors.Is(err, ledger.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := ledger.AcquireRunLock(path)
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	_ = second.Release()
}
