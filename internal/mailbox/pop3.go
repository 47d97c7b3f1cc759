package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gomail "github.com/emersion/go-message/mail"
	pop3 "github.com/knadh/go-pop3"

	"digestcast/internal/config"
	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
	"digestcast/internal/retry"
	"digestcast/internal/services"
)

// POP3Fetcher reads a POP3 maildrop. Messages are never deleted; headers are
// inspected with TOP so only matching messages are downloaded.
//
// Servers lock the maildrop for the life of a session, so concurrent Fetch
// calls wait for each other instead of opening parallel sessions.
type POP3Fetcher struct {
	server config.MailServer
	policy retry.Policy
	logger *slog.Logger

	session sync.Mutex
}

// NewPOP3Fetcher returns a fetcher for the given account.
func NewPOP3Fetcher(server config.MailServer, policy retry.Policy, logger *slog.Logger) *POP3Fetcher {
	return &POP3Fetcher{server: server, policy: policy, logger: logging.NewComponentLogger(logger, "mailbox.pop3")}
}

// Fetch scans the maildrop for messages from sender inside window.
func (f *POP3Fetcher) Fetch(ctx context.Context, sender string, window newsletter.Window) (Result, error) {
	f.session.Lock()
	defer f.session.Unlock()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	client := pop3.New(pop3.Opt{
		Host:       f.server.Host,
		Port:       f.server.Port,
		TLSEnabled: f.server.TLS,
	})
	conn, err := client.NewConn()
	if err != nil {
		return Result{}, transient("mailbox.pop3", "connect", fmt.Errorf("%s:%d: %w", f.server.Host, f.server.Port, err))
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Auth(f.server.Username, f.server.Password); err != nil {
		return Result{}, services.Wrap(services.ErrAuthentication, "mailbox.pop3", "auth", f.server.Username, err)
	}

	ids, err := conn.Uidl(0)
	if err != nil {
		return Result{}, transient("mailbox.pop3", "uidl", err)
	}

	var result Result
	for _, entry := range ids {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		top, err := conn.Top(entry.ID, 0)
		if err != nil {
			result.Failures = append(result.Failures, Failure{MessageID: f.messageKey(entry.UID), Err: transient("mailbox.pop3", "top", err)})
			continue
		}
		header := gomail.Header{Header: top.Header}
		from, _ := header.AddressList("From")
		if len(from) == 0 || !SenderMatches(from[0].Address, sender) {
			continue
		}
		date, err := header.Date()
		if err == nil && !window.Contains(date) {
			continue
		}

		id, _ := header.MessageID()
		if id == "" {
			id = f.messageKey(entry.UID)
		}
		seq := entry.ID
		msg, failure, err := retrieve(ctx, f.policy, id, func(context.Context) (newsletter.Message, error) {
			buf, retrErr := conn.RetrRaw(seq)
			if retrErr != nil {
				return newsletter.Message{}, transient("mailbox.pop3", "retr", retrErr)
			}
			return buildMessage(id, sender, buf.Bytes(), date)
		})
		if err != nil {
			return Result{}, err
		}
		if failure != nil {
			result.Failures = append(result.Failures, *failure)
			continue
		}
		result.Messages = append(result.Messages, msg)
	}
	f.logger.Debug("pop3 scan complete",
		logging.Sender(sender),
		logging.Int("maildrop", len(ids)),
		logging.Int("matched", len(result.Messages)),
	)
	result.Messages = finalize(result.Messages, window)
	return result, nil
}

func (f *POP3Fetcher) messageKey(uid string) string {
	return "pop3-" + f.server.Username + "-" + strings.TrimSpace(uid)
}

// Close is a no-op; connections are closed at the end of each Fetch.
func (f *POP3Fetcher) Close() error {
	return nil
}
