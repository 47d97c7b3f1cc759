package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"digestcast/internal/config"
	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
	"digestcast/internal/retry"
	"digestcast/internal/services"
)

// IMAPFetcher searches one folder of an IMAP account. Each Fetch opens its
// own session so senders can be fetched concurrently.
type IMAPFetcher struct {
	server config.MailServer
	policy retry.Policy
	logger *slog.Logger
}

// NewIMAPFetcher returns a fetcher for the given account.
func NewIMAPFetcher(server config.MailServer, policy retry.Policy, logger *slog.Logger) *IMAPFetcher {
	if strings.TrimSpace(server.Folder) == "" {
		server.Folder = "INBOX"
	}
	return &IMAPFetcher{server: server, policy: policy, logger: logging.NewComponentLogger(logger, "mailbox.imap")}
}

// SearchCriteria widens the window to whole days because IMAP SINCE and
// BEFORE compare dates only.
func SearchCriteria(sender string, window newsletter.Window) *imap.SearchCriteria {
	return &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: "From", Value: strings.TrimSpace(sender)}},
		Since:  window.Start.UTC().AddDate(0, 0, -1),
		Before: window.End.UTC().AddDate(0, 0, 1),
	}
}

// Fetch searches the folder for sender and downloads matching messages
// without setting \Seen.
func (f *IMAPFetcher) Fetch(ctx context.Context, sender string, window newsletter.Window) (Result, error) {
	client, err := f.connect()
	if err != nil {
		return Result{}, err
	}
	defer func() {
		_ = client.Logout().Wait()
		_ = client.Close()
	}()

	if _, err := client.Select(f.server.Folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "mailbox.imap", "select", f.server.Folder, err)
	}

	var uids []imap.UID
	err = retry.Do(ctx, f.policy, services.IsRetryable, func(int) error {
		data, searchErr := client.UIDSearch(SearchCriteria(sender, window), nil).Wait()
		if searchErr != nil {
			return transient("mailbox.imap", "search", searchErr)
		}
		uids = data.AllUIDs()
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	f.logger.Debug("imap search complete", logging.Sender(sender), logging.Int("candidates", len(uids)))

	var result Result
	for _, uid := range uids {
		id := f.messageKey(uid)
		msg, failure, err := retrieve(ctx, f.policy, id, func(context.Context) (newsletter.Message, error) {
			return f.fetchOne(client, uid, sender)
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
	result.Messages = finalize(result.Messages, window)
	return result, nil
}

func (f *IMAPFetcher) connect() (*imapclient.Client, error) {
	addr := net.JoinHostPort(f.server.Host, strconv.Itoa(f.server.Port))
	var (
		client *imapclient.Client
		err    error
	)
	if f.server.TLS {
		client, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: f.server.Host},
		})
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, transient("mailbox.imap", "connect", fmt.Errorf("%s: %w", addr, err))
	}
	if err := client.Login(f.server.Username, f.server.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, services.Wrap(services.ErrAuthentication, "mailbox.imap", "login", f.server.Username, err)
	}
	return client, nil
}

func (f *IMAPFetcher) fetchOne(client *imapclient.Client, uid imap.UID, sender string) (newsletter.Message, error) {
	section := &imap.FetchItemBodySection{Peek: true}
	cmd := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	})
	defer cmd.Close()

	data := cmd.Next()
	if data == nil {
		return newsletter.Message{}, services.Wrap(services.ErrNotFound, "mailbox.imap", "fetch", fmt.Sprintf("uid %d", uid), nil)
	}
	buf, err := data.Collect()
	if err != nil {
		return newsletter.Message{}, transient("mailbox.imap", "fetch", err)
	}
	raw := buf.FindBodySection(section)
	if len(raw) == 0 {
		return newsletter.Message{}, services.Wrap(services.ErrValidation, "mailbox.imap", "fetch", fmt.Sprintf("uid %d has no body", uid), nil)
	}
	if err := cmd.Close(); err != nil {
		return newsletter.Message{}, transient("mailbox.imap", "fetch", err)
	}
	header, err := ParseHeader(raw)
	if err != nil {
		return newsletter.Message{}, services.Wrap(services.ErrValidation, "mailbox.imap", "parse", "", err)
	}
	id := strings.Trim(header.MessageID, "<>")
	if id == "" {
		id = f.messageKey(uid)
	}
	return buildMessage(id, sender, raw, buf.InternalDate)
}

func (f *IMAPFetcher) messageKey(uid imap.UID) string {
	return fmt.Sprintf("imap-%s-%s-%d", f.server.Username, f.server.Folder, uid)
}

// Close is a no-op; sessions are closed at the end of each Fetch.
func (f *IMAPFetcher) Close() error {
	return nil
}
