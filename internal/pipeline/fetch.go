package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"digestcast/internal/logging"
	"digestcast/internal/mailbox"
	"digestcast/internal/newsletter"
	"digestcast/internal/services"
)

// fetch lists every registered sender concurrently. A fatal error cancels the
// remaining fetches; any other sender failure is recorded and skipped.
func (r *Runner) fetch(ctx context.Context, window newsletter.Window, logger *slog.Logger, summary *Summary) ([]newsletter.Message, error) {
	senders := r.deps.Registry.Senders()
	results := make([]mailbox.Result, len(senders))
	errs := make([]error, len(senders))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(r.cfg.Mailbox.Concurrency, 1))
	for i, sender := range senders {
		group.Go(func() error {
			result, err := r.deps.Fetcher.Fetch(services.WithSender(groupCtx, sender), sender, window)
			if err != nil {
				if services.Classify(err) == services.SeverityFatal {
					return err
				}
				errs[i] = err
				return nil
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	failed := make(map[string]struct{})
	var messages []newsletter.Message
	for i, sender := range senders {
		if err := errs[i]; err != nil {
			logging.WarnWithContext(logger, "sender fetch failed", "fetch_failed",
				logging.Sender(sender),
				logging.Error(err),
				logging.Impact("newsletter skipped this run"),
				logging.ErrorHint("check mailbox connectivity; the window is retried next run"),
			)
			summary.Failures = append(summary.Failures, MessageFailure{Sender: sender, Stage: "fetch", Err: err})
			continue
		}
		// A file the backend cannot parse is reported by every sender scan.
		for _, failure := range results[i].Failures {
			if _, dup := failed[failure.MessageID]; dup {
				continue
			}
			failed[failure.MessageID] = struct{}{}
			summary.skipMessage(MessageFailure{
				MessageID: failure.MessageID,
				Sender:    sender,
				Stage:     "fetch",
				Err:       failure.Err,
			})
		}
		for _, msg := range results[i].Messages {
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
			messages = append(messages, msg)
		}
		logger.Debug("sender fetched",
			logging.Sender(sender),
			logging.Int("messages", len(results[i].Messages)),
			logging.Int("failures", len(results[i].Failures)),
		)
	}
	summary.Fetched = len(messages)
	return messages, nil
}
