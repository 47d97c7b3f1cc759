package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"digestcast/internal/audio"
	"digestcast/internal/config"
	"digestcast/internal/ledger"
	"digestcast/internal/logging"
	"digestcast/internal/mailbox"
	"digestcast/internal/newsletter"
	"digestcast/internal/notifications"
	"digestcast/internal/retry"
	"digestcast/internal/services"
	"digestcast/internal/sources"
	"digestcast/internal/synth"
	"digestcast/internal/textutil"
	"digestcast/internal/upload"
	"digestcast/internal/workdir"
)

// staleWorkAge bounds how long kept or abandoned run directories survive.
const staleWorkAge = 7 * 24 * time.Hour

// Ledger is the state the pipeline reads before and commits after a run.
type Ledger interface {
	ResolveWindow(ctx context.Context, explicitStart, explicitEnd *time.Time, now time.Time) (newsletter.Window, error)
	IsProcessed(ctx context.Context, id string) (bool, error)
	Commit(ctx context.Context, ids []string, windowEnd, at time.Time) error
}

// Extractor converts a raw message into speakable text.
type Extractor interface {
	Extract(raw []byte) (string, error)
}

// AudioProcessor assembles tracks and compiles the audiobook.
type AudioProcessor interface {
	Assemble(ctx context.Context, messageID, displayName string, chunks []newsletter.AudioChunk, outPath string) (newsletter.MessageTrack, error)
	Compile(ctx context.Context, title string, tracks []newsletter.MessageTrack, outPath string) (newsletter.Audiobook, error)
}

// Deps are the collaborators of a run.
type Deps struct {
	Registry  *sources.Registry
	Ledger    Ledger
	Fetcher   mailbox.Fetcher
	Extractor Extractor
	Engine    synth.Engine
	Audio     AudioProcessor
	Uploader  upload.Uploader
	Notifier  notifications.Service
	// LockPath, when set, is flocked for the whole run.
	LockPath string
	// SynthPolicy overrides the per-chunk retry policy.
	SynthPolicy *retry.Policy
}

// Options select the window and work directory handling of one run.
type Options struct {
	Start    *time.Time
	End      *time.Time
	KeepWork bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes digest runs.
type Runner struct {
	cfg     *config.Config
	deps    Deps
	logger  *slog.Logger
	closers []func() error
}

// New returns a Runner. Missing notifier defaults to a no-op.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Runner {
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(&config.Config{})
	}
	return &Runner{cfg: cfg, deps: deps, logger: logging.NewComponentLogger(logger, "pipeline")}
}

// Close releases resources opened by Build.
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Registry returns the sender registry the runner fetches.
func (r *Runner) Registry() *sources.Registry {
	return r.deps.Registry
}

// Run performs one digest run. The returned error is non-nil exactly when
// the summary status is failed or upload_failed.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	started := now()
	summary := Summary{RunID: uuid.NewString(), Status: StatusFailed}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, r.logger)

	err := r.run(ctx, opts, now, logger, &summary)
	summary.Elapsed = now().Sub(started)
	if err != nil && summary.Status != StatusUploadFailed {
		summary.Status = StatusFailed
	}
	r.notify(ctx, logger, summary, err)
	return summary, err
}

func (r *Runner) run(ctx context.Context, opts Options, now func() time.Time, logger *slog.Logger, summary *Summary) error {
	if r.deps.LockPath != "" {
		lock, err := ledger.AcquireRunLock(r.deps.LockPath)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	window, err := r.deps.Ledger.ResolveWindow(ctx, opts.Start, opts.End, now())
	if err != nil {
		return err
	}
	summary.Window = window
	logger.Info("digest run started",
		logging.String("window", window.String()),
		logging.Int("senders", r.deps.Registry.Len()),
	)

	workdir.SweepStale(r.cfg.Paths.WorkDir, staleWorkAge, now(), logger)
	runDir := filepath.Join(r.cfg.Paths.WorkDir, summary.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "create work dir", runDir, err)
	}
	if !opts.KeepWork {
		defer func() {
			if err := os.RemoveAll(runDir); err != nil {
				logger.Debug("work dir cleanup failed", logging.Error(err))
			}
		}()
	} else {
		logger.Info("keeping work directory", logging.String("work_dir", runDir))
	}

	messages, err := r.fetch(ctx, window, logger, summary)
	if err != nil {
		return err
	}
	pending, err := r.filterProcessed(ctx, messages, summary)
	if err != nil {
		return err
	}

	tracks, err := r.produceTracks(ctx, pending, runDir, logger, summary)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		summary.Status = StatusNothingToCompile
		logger.Info("nothing to compile; ledger unchanged",
			logging.Int("fetched", summary.Fetched),
			logging.Int("skipped", summary.Skipped),
			logging.Int("failed", len(summary.Failures)),
		)
		return nil
	}

	title := audio.Title(window)
	outPath := filepath.Join(runDir, textutil.SanitizeFileName(title)+".mp3")
	book, err := r.deps.Audio.Compile(ctx, title, tracks, outPath)
	if err != nil {
		if errors.Is(err, audio.ErrNothingToCompile) {
			summary.Status = StatusNothingToCompile
			return nil
		}
		return fmt.Errorf("compile audiobook: %w", err)
	}
	summary.Title = book.Title
	summary.Duration = book.Duration
	summary.Chapters = book.Chapters
	summary.ArtifactPath = book.Path

	receipt, err := r.deps.Uploader.Upload(ctx, book)
	if err != nil {
		summary.Status = StatusUploadFailed
		logging.ErrorWithContext(logger, "upload failed; nothing committed", "upload_failed",
			logging.Error(err),
			logging.ErrorHint("the same messages will be rebuilt on the next run"),
		)
		return err
	}
	summary.ReceiptID = receipt.ID

	if err := r.deps.Ledger.Commit(ctx, book.MessageIDs, window.End, now()); err != nil {
		logging.ErrorWithContext(logger, "audiobook uploaded but ledger commit failed", "commit_failed",
			logging.Error(err),
			logging.String("receipt_id", receipt.ID),
			logging.ErrorHint("the next run will upload these messages again"),
			logging.Impact("duplicate audiobook possible"),
		)
		return err
	}
	summary.Status = StatusUploaded
	summary.Uploaded = len(book.MessageIDs)

	if r.cfg.Paths.ArchiveDir != "" {
		dest, err := upload.Archive(book.Path, r.cfg.Paths.ArchiveDir, book.Title)
		if err != nil {
			logging.WarnWithContext(logger, "archive copy failed", "archive_failed",
				logging.Error(err),
				logging.Impact("audiobook uploaded but not archived locally"),
				logging.ErrorHint("check paths.archive_dir"),
			)
		} else {
			summary.ArchivePath = dest
		}
	}

	logger.Info("digest run complete",
		logging.String("title", book.Title),
		logging.Duration("duration", book.Duration),
		logging.Int("chapters", len(book.Chapters)),
		logging.String("receipt_id", receipt.ID),
	)
	return nil
}

func (r *Runner) filterProcessed(ctx context.Context, messages []newsletter.Message, summary *Summary) ([]newsletter.Message, error) {
	pending := make([]newsletter.Message, 0, len(messages))
	for _, msg := range messages {
		done, err := r.deps.Ledger.IsProcessed(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
		if done {
			summary.Skipped++
			continue
		}
		pending = append(pending, msg)
	}
	return pending, nil
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, summary Summary, runErr error) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	var err error
	if summary.Status == StatusFailed {
		err = r.deps.Notifier.NotifyRunFailed(notifyCtx, runErr)
	} else {
		err = r.deps.Notifier.NotifyRunCompleted(notifyCtx, notifications.RunReport{
			Status:    string(summary.Status),
			Title:     summary.Title,
			Duration:  summary.Duration,
			Messages:  summary.Uploaded,
			Failed:    len(summary.Failures),
			ReceiptID: summary.ReceiptID,
		})
	}
	if err != nil {
		logging.WarnWithContext(logger, "notification failed", "notify_failed",
			logging.Error(err),
			logging.Impact("run outcome not pushed"),
			logging.ErrorHint("check notifications.ntfy_topic"),
		)
	}
}
