package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"digestcast/internal/config"
	"digestcast/internal/services"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is the processed-message ledger.
type Store struct {
	db       *sqlx.DB
	driver   string
	lookback time.Duration
}

// Open connects to the backend selected by cfg.State and ensures the schema.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.State.Driver {
	case "postgres":
		return OpenPostgres(ctx, cfg.State.DSN, cfg.Lookback())
	default:
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, services.Wrap(services.ErrStateStore, "ledger", "open", "ensure directories", err)
		}
		return OpenSQLite(ctx, cfg.StatePath(), cfg.Lookback())
	}
}

// OpenSQLite opens (or creates) a ledger database file at path.
func OpenSQLite(ctx context.Context, path string, lookback time.Duration) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrStateStore, "ledger", "open sqlite", path, err)
	}
	// One writer connection keeps SQLite transactions serialized.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrStateStore, "ledger", "apply pragma", pragma, execErr)
		}
	}
	return newStore(ctx, db, "sqlite", lookback)
}

// OpenPostgres connects to a Postgres ledger using the pgx driver.
func OpenPostgres(ctx context.Context, dsn string, lookback time.Duration) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrStateStore, "ledger", "open postgres", "", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrStateStore, "ledger", "ping postgres", "", err)
	}
	return newStore(ctx, db, "postgres", lookback)
}

func newStore(ctx context.Context, db *sqlx.DB, driver string, lookback time.Duration) (*Store, error) {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	store := &Store{db: db, driver: driver, lookback: lookback}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports the backend in use ("sqlite" or "postgres").
func (s *Store) Driver() string {
	return s.driver
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	query = s.db.Rebind(query)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func storeErr(operation string, err error) error {
	return services.Wrap(services.ErrStateStore, "ledger", operation, "", err)
}
