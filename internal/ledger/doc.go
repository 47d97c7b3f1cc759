// Package ledger persists which newsletter messages have been converted and
// how far the committed processing window has advanced.
//
// The store runs on SQLite (modernc.org/sqlite) by default or Postgres through
// the pgx stdlib driver, both accessed with sqlx. Processed records are the
// authoritative duplicate guard; the committed window end only decides where
// the next unbounded run starts. A run holds an advisory file lock for its
// whole duration so two invocations never interleave commits.
package ledger
