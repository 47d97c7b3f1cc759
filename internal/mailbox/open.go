package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"digestcast/internal/config"
	"digestcast/internal/retry"
	"digestcast/internal/services"
)

// PolicyFromConfig returns the per-message retry policy for the mailbox.
func PolicyFromConfig(cfg config.Mailbox) retry.Policy {
	return retry.Policy{
		Attempts:  cfg.RetryAttempts,
		BaseDelay: time.Duration(cfg.RetryBackoffSeconds) * time.Second,
	}
}

// Open constructs the Fetcher selected by mailbox.backend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	policy := PolicyFromConfig(cfg.Mailbox)
	switch cfg.Mailbox.Backend {
	case "gmail":
		fetcher, err := openGmail(ctx, cfg.Mailbox.Gmail, policy, logger)
		if err != nil {
			return nil, err
		}
		return fetcher, nil
	case "imap":
		return NewIMAPFetcher(cfg.Mailbox.IMAP, policy, logger), nil
	case "pop3":
		return NewPOP3Fetcher(cfg.Mailbox.POP3, policy, logger), nil
	case "maildir":
		return NewDirFetcher(cfg.Mailbox.MaildirPath, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "mailbox", "open", fmt.Sprintf("unsupported backend %q", cfg.Mailbox.Backend), nil)
	}
}
