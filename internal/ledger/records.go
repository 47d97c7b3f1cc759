package ledger

import (
	"context"
	"strings"
	"time"

	"digestcast/internal/newsletter"
)

type processedRow struct {
	MessageID   string `db:"message_id"`
	ProcessedAt int64  `db:"processed_at"`
}

const insertProcessed = `INSERT INTO processed_messages (message_id, processed_at) VALUES (?, ?)
	ON CONFLICT (message_id) DO NOTHING`

// IsProcessed reports whether id has already been converted.
func (s *Store) IsProcessed(ctx context.Context, id string) (bool, error) {
	var count int
	query := s.db.Rebind("SELECT COUNT(1) FROM processed_messages WHERE message_id = ?")
	if err := s.db.GetContext(ctx, &count, query, strings.TrimSpace(id)); err != nil {
		return false, storeErr("is processed", err)
	}
	return count > 0, nil
}

// MarkProcessed records id as converted. Marking twice is a no-op and keeps
// the original timestamp.
func (s *Store) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	if err := s.exec(ctx, insertProcessed, strings.TrimSpace(id), toNanos(at)); err != nil {
		return storeErr("mark processed", err)
	}
	return nil
}

// Recent lists the most recently processed messages, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]newsletter.ProcessedRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []processedRow
	query := s.db.Rebind("SELECT message_id, processed_at FROM processed_messages ORDER BY processed_at DESC, message_id LIMIT ?")
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, storeErr("list processed", err)
	}
	records := make([]newsletter.ProcessedRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, newsletter.ProcessedRecord{MessageID: row.MessageID, ProcessedAt: fromNanos(row.ProcessedAt)})
	}
	return records, nil
}
