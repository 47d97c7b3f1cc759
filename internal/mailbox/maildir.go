package mailbox

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
	"digestcast/internal/services"
)

// DirFetcher reads messages from a directory tree of .eml files or a
// Maildir (cur/ and new/). It backs offline runs and tests.
type DirFetcher struct {
	root   string
	logger *slog.Logger
}

// NewDirFetcher returns a fetcher rooted at dir.
func NewDirFetcher(dir string, logger *slog.Logger) *DirFetcher {
	return &DirFetcher{root: dir, logger: logging.NewComponentLogger(logger, "mailbox.maildir")}
}

// Fetch walks the directory and returns messages from sender inside window.
func (f *DirFetcher) Fetch(ctx context.Context, sender string, window newsletter.Window) (Result, error) {
	if _, err := os.Stat(f.root); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "mailbox.maildir", "stat", f.root, err)
	}
	var result Result
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !isMessageFile(path) {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			result.Failures = append(result.Failures, Failure{MessageID: filepath.Base(path), Err: err})
			return nil
		}
		header, err := ParseHeader(raw)
		if err != nil {
			result.Failures = append(result.Failures, Failure{MessageID: filepath.Base(path), Err: err})
			return nil
		}
		if !SenderMatches(header.From, sender) {
			return nil
		}
		id := strings.Trim(header.MessageID, "<>")
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		msg, err := buildMessage(id, sender, raw, header.Date)
		if err != nil {
			result.Failures = append(result.Failures, Failure{MessageID: id, Err: err})
			return nil
		}
		result.Messages = append(result.Messages, msg)
		return nil
	})
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "mailbox.maildir", "walk", f.root, err)
	}
	result.Messages = finalize(result.Messages, window)
	return result, nil
}

// Close is a no-op.
func (f *DirFetcher) Close() error {
	return nil
}

func isMessageFile(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".eml") {
		return true
	}
	parent := filepath.Base(filepath.Dir(path))
	return (parent == "cur" || parent == "new") && !strings.HasPrefix(filepath.Base(path), ".")
}
