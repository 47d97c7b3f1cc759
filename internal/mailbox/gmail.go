package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
	"digestcast/internal/retry"
	"digestcast/internal/services"
)

const gmailPageSize = 100

// GmailFetcher reads messages through the Gmail REST API.
type GmailFetcher struct {
	srv    *gmail.Service
	user   string
	policy retry.Policy
	logger *slog.Logger
}

// NewGmailFetcher wraps an authenticated Gmail service.
func NewGmailFetcher(srv *gmail.Service, user string, policy retry.Policy, logger *slog.Logger) *GmailFetcher {
	if strings.TrimSpace(user) == "" {
		user = "me"
	}
	return &GmailFetcher{
		srv:    srv,
		user:   user,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "mailbox.gmail"),
	}
}

// GmailQuery builds the search expression for one sender and window. Gmail
// accepts epoch seconds for after/before; results are still filtered locally.
func GmailQuery(sender string, window newsletter.Window) string {
	return fmt.Sprintf("from:%s after:%d before:%d", strings.TrimSpace(sender), window.Start.Unix(), window.End.Unix()+1)
}

// Fetch lists and downloads every message from sender inside window.
func (f *GmailFetcher) Fetch(ctx context.Context, sender string, window newsletter.Window) (Result, error) {
	ids, err := f.list(ctx, GmailQuery(sender, window))
	if err != nil {
		return Result{}, err
	}
	f.logger.Debug("gmail listing complete", logging.Sender(sender), logging.Int("candidates", len(ids)))

	var result Result
	for _, id := range ids {
		msg, failure, err := retrieve(ctx, f.policy, id, func(ctx context.Context) (newsletter.Message, error) {
			return f.get(ctx, id, sender)
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

func (f *GmailFetcher) list(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		var resp *gmail.ListMessagesResponse
		err := retry.Do(ctx, f.policy, services.IsRetryable, func(int) error {
			call := f.srv.Users.Messages.List(f.user).Q(query).MaxResults(gmailPageSize).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var callErr error
			resp, callErr = call.Do()
			return classifyGmail("list", callErr)
		})
		if err != nil {
			return nil, err
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (f *GmailFetcher) get(ctx context.Context, id, sender string) (newsletter.Message, error) {
	msg, err := f.srv.Users.Messages.Get(f.user, id).Format("raw").Context(ctx).Do()
	if err != nil {
		return newsletter.Message{}, classifyGmail("get "+id, err)
	}
	raw, err := decodeRaw(msg.Raw)
	if err != nil {
		return newsletter.Message{}, services.Wrap(services.ErrValidation, "mailbox.gmail", "decode", id, err)
	}
	var received time.Time
	if msg.InternalDate > 0 {
		received = time.UnixMilli(msg.InternalDate)
	}
	return buildMessage(id, sender, raw, received)
}

// Close is a no-op; the HTTP client owns no long-lived connection state.
func (f *GmailFetcher) Close() error {
	return nil
}

func decodeRaw(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

func classifyGmail(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return services.Wrap(services.ErrAuthentication, "mailbox.gmail", op, "re-run `digestcast auth gmail`", err)
		case apiErr.Code == http.StatusNotFound:
			return services.Wrap(services.ErrNotFound, "mailbox.gmail", op, "", err)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return transient("mailbox.gmail", op, err)
		default:
			return services.Wrap(services.ErrValidation, "mailbox.gmail", op, "", err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) {
		return services.Wrap(services.ErrAuthentication, "mailbox.gmail", op, "token refresh failed; re-run `digestcast auth gmail`", err)
	}
	return transient("mailbox.gmail", op, err)
}
