package upload

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
	"digestcast/internal/retry"
	"digestcast/internal/services"
	"digestcast/internal/textutil"
)

// ObjectStore is the part of the Supabase client the uploader needs.
type ObjectStore interface {
	UploadObject(bucket, path string, data io.Reader, contentType string) error
	Insert(table string, row any, dest any) error
}

// Supabase stores the MP3 in a bucket and records it in a table.
type Supabase struct {
	client ObjectStore
	bucket string
	table  string
	policy retry.Policy
	now    func() time.Time
	logger *slog.Logger
}

// NewSupabase returns an uploader writing through client.
func NewSupabase(client ObjectStore, bucket, table string, policy retry.Policy, logger *slog.Logger) *Supabase {
	return &Supabase{
		client: client,
		bucket: bucket,
		table:  table,
		policy: policy,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "upload.supabase"),
	}
}

type audiobookRow struct {
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
	ChaptersJSON    string `json:"chapters_json"`
	AudioPath       string `json:"audio_path"`
}

type insertedRow struct {
	ID json.RawMessage `json:"id"`
}

// Upload implements Uploader. The object upload overwrites, so a retry after
// a failed insert does not leave duplicates in the bucket.
func (s *Supabase) Upload(ctx context.Context, book newsletter.Audiobook) (newsletter.Receipt, error) {
	meta, err := MetadataFor(book)
	if err != nil {
		return newsletter.Receipt{}, err
	}
	key := textutil.ObjectKey(s.now().UTC().Format(time.DateOnly), filepath.Base(book.Path))

	var receipt newsletter.Receipt
	err = retry.Do(ctx, s.policy, services.IsRetryable, func(int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		file, err := os.Open(book.Path)
		if err != nil {
			return services.Wrap(services.ErrValidation, "upload.supabase", "open artifact", book.Path, err)
		}
		defer file.Close()
		if err := s.client.UploadObject(s.bucket, key, file, "audio/mpeg"); err != nil {
			return services.Wrap(services.ErrTransient, "upload.supabase", "storage upload", s.bucket, err)
		}
		var rows []insertedRow
		row := audiobookRow{
			Title:           meta.Title,
			DurationSeconds: meta.DurationSeconds,
			ChaptersJSON:    meta.ChaptersJSON,
			AudioPath:       key,
		}
		if err := s.client.Insert(s.table, row, &rows); err != nil {
			return services.Wrap(services.ErrTransient, "upload.supabase", "insert row", s.table, err)
		}
		receipt = newsletter.Receipt{URL: s.bucket + "/" + key}
		if len(rows) > 0 {
			receipt.ID = rawID(rows[0].ID)
		}
		return nil
	})
	if err != nil {
		return newsletter.Receipt{}, err
	}
	s.logger.Info("audiobook uploaded",
		logging.String("title", book.Title),
		logging.String("object", key),
		logging.String("receipt_id", receipt.ID),
	)
	return receipt, nil
}
