package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"digestcast/internal/config"
	"digestcast/internal/newsletter"
	"digestcast/internal/retry"
	"digestcast/internal/services"
	"digestcast/internal/supastore"
)

// Uploader delivers one audiobook.
type Uploader interface {
	Upload(ctx context.Context, book newsletter.Audiobook) (newsletter.Receipt, error)
}

// Metadata is the JSON document sent alongside the audio file.
type Metadata struct {
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
	ChaptersJSON    string `json:"chapters_json"`
}

// MetadataFor builds upload metadata for book.
func MetadataFor(book newsletter.Audiobook) (Metadata, error) {
	chapters, err := ChaptersJSON(book.Chapters)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Title:           book.Title,
		DurationSeconds: int(book.Duration / time.Second),
		ChaptersJSON:    chapters,
	}, nil
}

// ChaptersJSON encodes chapters as a JSON object mapping title to start
// second. Keys keep chapter order.
func ChaptersJSON(chapters []newsletter.Chapter) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, chapter := range chapters {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(chapter.Title)
		if err != nil {
			return "", fmt.Errorf("encode chapter title: %w", err)
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", int64(chapter.Start/time.Second))
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// ManualAudiobook describes an existing MP3 uploaded outside a run. Players
// need at least one chapter, so the whole file is "Part Start".
func ManualAudiobook(path, title string, duration time.Duration) newsletter.Audiobook {
	if strings.TrimSpace(title) == "" {
		title = "Manual Upload: " + filepath.Base(path)
	}
	return newsletter.Audiobook{
		Title:    title,
		Path:     path,
		Duration: duration,
		Chapters: []newsletter.Chapter{{Title: "Part Start", Start: 0}},
	}
}

// PolicyFromConfig maps upload retry settings to a retry policy.
func PolicyFromConfig(cfg config.Upload) retry.Policy {
	return retry.Policy{
		Attempts:  cfg.RetryAttempts,
		BaseDelay: time.Duration(cfg.RetryBackoffSeconds) * time.Second,
		MaxDelay:  5 * time.Minute,
	}
}

// Open constructs the uploader selected by upload.backend.
func Open(cfg *config.Config, logger *slog.Logger) (Uploader, error) {
	switch cfg.Upload.Backend {
	case "webapi":
		api, err := NewWebAPI(WebAPIConfig{
			BaseURL: cfg.Upload.APIURL,
			APIKey:  cfg.Upload.APIKey,
			Timeout: time.Duration(cfg.Upload.TimeoutSeconds) * time.Second,
			Policy:  PolicyFromConfig(cfg.Upload),
		}, logger)
		if err != nil {
			return nil, err
		}
		return api, nil
	case "supabase":
		client, err := supastore.New(cfg.Supabase.URL, cfg.Supabase.Key)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "upload", "open supabase", "", err)
		}
		return NewSupabase(client, cfg.Supabase.Bucket, cfg.Supabase.Table, PolicyFromConfig(cfg.Upload), logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "upload", "open", fmt.Sprintf("unsupported backend %q", cfg.Upload.Backend), nil)
	}
}
