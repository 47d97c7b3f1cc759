package ledger

import (
	"context"
	"errors"
	"fmt"
)

// schemaVersion is bumped whenever the tables below change shape.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Statements run one at a time so the same DDL works on SQLite and Postgres.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS processed_messages (
		message_id   TEXT PRIMARY KEY,
		processed_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS window_commits (
		id           INTEGER PRIMARY KEY,
		window_end   BIGINT NOT NULL,
		committed_at BIGINT NOT NULL
	)`,
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := s.exec(ctx, stmt); err != nil {
			return storeErr("create schema", err)
		}
	}

	var rows int
	if err := s.db.GetContext(ctx, &rows, "SELECT COUNT(1) FROM schema_version"); err != nil {
		return storeErr("read schema version", err)
	}
	if rows == 0 {
		if err := s.exec(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return storeErr("record schema version", err)
		}
		return nil
	}

	var version int
	if err := s.db.GetContext(ctx, &version, "SELECT MAX(version) FROM schema_version"); err != nil {
		return storeErr("read schema version", err)
	}
	if version != schemaVersion {
		return storeErr("check schema", fmt.Errorf("%w: database has version %d, expected %d (move the state database aside to start fresh)",
			ErrSchemaMismatch, version, schemaVersion))
	}
	return nil
}
