package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"digestcast/internal/audio"
	"digestcast/internal/chunk"
	"digestcast/internal/extract"
	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
	"digestcast/internal/retry"
	"digestcast/internal/services"
	"digestcast/internal/synth"
	"digestcast/internal/textutil"
)

// stageError tags a message-local failure with the stage that produced it.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// produceTracks converts pending messages into tracks in chapter order.
// Messages that fail are recorded on summary and left out.
func (r *Runner) produceTracks(ctx context.Context, pending []newsletter.Message, runDir string, logger *slog.Logger, summary *Summary) ([]newsletter.MessageTrack, error) {
	if len(pending) == 0 {
		return nil, nil
	}
	workers := 1
	if r.deps.Engine.Concurrent() {
		workers = max(r.cfg.Synth.Workers, 1)
	}

	tracks := make([]*newsletter.MessageTrack, len(pending))
	failures := make([]error, len(pending))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i, msg := range pending {
		group.Go(func() error {
			track, err := r.processMessage(groupCtx, msg, runDir, logger)
			if err != nil {
				if isFatal(err) || groupCtx.Err() != nil {
					return err
				}
				failures[i] = err
				return nil
			}
			tracks[i] = &track
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	items := make([]audio.TrackMeta, 0, len(pending))
	for i, msg := range pending {
		if err := failures[i]; err != nil {
			stage := "synthesize"
			var se *stageError
			if errors.As(err, &se) {
				stage = se.stage
			}
			logging.WarnWithContext(logger, "message skipped", "message_failed",
				logging.MessageID(msg.ID),
				logging.Sender(msg.Sender),
				logging.Stage(stage),
				logging.Error(err),
				logging.Impact("message left out of this audiobook"),
				logging.ErrorHint("it stays unprocessed and is retried next run"),
			)
			summary.skipMessage(MessageFailure{MessageID: msg.ID, Sender: msg.Sender, Stage: stage, Err: err})
			continue
		}
		items = append(items, audio.TrackMeta{Track: *tracks[i], Sender: msg.Sender, ReceivedAt: msg.ReceivedAt})
	}
	summary.Synthesized = len(items)
	return audio.OrderTracks(items, r.deps.Registry.Position), nil
}

// processMessage runs extract, chunk, synthesize, and assemble for one
// message.
func (r *Runner) processMessage(ctx context.Context, msg newsletter.Message, runDir string, logger *slog.Logger) (newsletter.MessageTrack, error) {
	ctx = services.WithMessageID(services.WithSender(ctx, msg.Sender), msg.ID)
	logger = logger.With(logging.MessageID(msg.ID))
	displayName := r.deps.Registry.DisplayName(msg.Sender)

	text, err := r.deps.Extractor.Extract(msg.Raw)
	if err != nil {
		return newsletter.MessageTrack{}, &stageError{stage: "extract", err: err}
	}
	if r.cfg.Extract.Intro {
		text = extract.WithIntro(text, displayName, msg.ReceivedAt)
	}
	chunks, err := chunk.Split(msg.ID, text, r.cfg.Synth.MaxChars)
	if err != nil {
		return newsletter.MessageTrack{}, &stageError{stage: "chunk", err: err}
	}

	msgDir := filepath.Join(runDir, textutil.SanitizeToken(msg.ID))
	if err := os.MkdirAll(msgDir, 0o755); err != nil {
		return newsletter.MessageTrack{}, services.Wrap(services.ErrConfiguration, "pipeline", "create message dir", msgDir, err)
	}

	policy := r.synthPolicy()
	audioChunks := make([]newsletter.AudioChunk, 0, len(chunks))
	for _, tc := range chunks {
		outPath := filepath.Join(msgDir, fmt.Sprintf("chunk_%04d.wav", tc.Index))
		var produced newsletter.AudioChunk
		err := retry.Do(ctx, policy, services.IsRetryable, func(attempt int) error {
			if attempt > 1 {
				logger.Info("retrying chunk", logging.Int("chunk", tc.Index), logging.Int("attempt", attempt))
			}
			var synthErr error
			produced, synthErr = r.deps.Engine.Synthesize(ctx, tc, outPath)
			return synthErr
		})
		if err != nil {
			return newsletter.MessageTrack{}, &stageError{stage: "synthesize", err: fmt.Errorf("chunk %d: %w", tc.Index, err)}
		}
		audioChunks = append(audioChunks, produced)
	}

	track, err := r.deps.Audio.Assemble(ctx, msg.ID, displayName, audioChunks, filepath.Join(msgDir, "track.wav"))
	if err != nil {
		return newsletter.MessageTrack{}, &stageError{stage: "assemble", err: err}
	}
	logger.Info("message converted",
		logging.Int("chunks", len(chunks)),
		logging.Duration("duration", track.Duration),
	)
	return track, nil
}

func (r *Runner) synthPolicy() retry.Policy {
	if r.deps.SynthPolicy != nil {
		return *r.deps.SynthPolicy
	}
	return retry.Policy{Attempts: max(r.cfg.Synth.RetryAttempts, 1), BaseDelay: time.Second}
}

func isFatal(err error) bool {
	return synth.IsFatal(err) || services.Classify(err) == services.SeverityFatal
}
