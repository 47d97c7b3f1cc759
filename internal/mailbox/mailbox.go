package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"digestcast/internal/newsletter"
	"digestcast/internal/retry"
	"digestcast/internal/services"
)

// Fetcher lists a sender's messages inside a window.
type Fetcher interface {
	Fetch(ctx context.Context, sender string, window newsletter.Window) (Result, error)
	Close() error
}

// Failure is a message that could not be retrieved after retries.
type Failure struct {
	MessageID string
	Err       error
}

// Result is the outcome of fetching one sender.
type Result struct {
	Messages []newsletter.Message
	Failures []Failure
}

// Header holds the envelope fields digestcast reads from a raw message.
type Header struct {
	MessageID string
	From      string
	Subject   string
	Date      time.Time
}

// ParseHeader reads From, Subject, Date, and Message-ID from raw.
func ParseHeader(raw []byte) (Header, error) {
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return Header{}, fmt.Errorf("parse message header: %w", err)
	}
	defer reader.Close()

	var header Header
	header.MessageID, _ = reader.Header.MessageID()
	if subject, err := reader.Header.Subject(); err == nil {
		header.Subject = subject
	} else {
		header.Subject = reader.Header.Get("Subject")
	}
	if from, err := reader.Header.AddressList("From"); err == nil && len(from) > 0 {
		header.From = strings.ToLower(from[0].Address)
	}
	if date, err := reader.Header.Date(); err == nil {
		header.Date = date
	}
	return header, nil
}

// SenderMatches reports whether the From address of a message is sender.
func SenderMatches(from, sender string) bool {
	return normalizeAddress(from) == normalizeAddress(sender)
}

func normalizeAddress(value string) string {
	value = strings.TrimSpace(value)
	if addr, err := mail.ParseAddress(value); err == nil {
		value = addr.Address
	}
	return strings.ToLower(value)
}

// finalize drops messages outside the window, removes duplicate ids, and
// orders the rest by receipt time then id.
func finalize(messages []newsletter.Message, window newsletter.Window) []newsletter.Message {
	seen := make(map[string]struct{}, len(messages))
	kept := messages[:0]
	for _, msg := range messages {
		if !window.Contains(msg.ReceivedAt) {
			continue
		}
		if _, dup := seen[msg.ID]; dup {
			continue
		}
		seen[msg.ID] = struct{}{}
		kept = append(kept, msg)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].ReceivedAt.Equal(kept[j].ReceivedAt) {
			return kept[i].ReceivedAt.Before(kept[j].ReceivedAt)
		}
		return kept[i].ID < kept[j].ID
	})
	return kept
}

// buildMessage turns raw bytes into a Message, preferring the provider's
// receipt time over the Date header when one is known.
func buildMessage(id, sender string, raw []byte, received time.Time) (newsletter.Message, error) {
	header, err := ParseHeader(raw)
	if err != nil {
		return newsletter.Message{}, services.Wrap(services.ErrValidation, "mailbox", "parse", id, err)
	}
	if received.IsZero() {
		received = header.Date
	}
	if received.IsZero() {
		return newsletter.Message{}, services.Wrap(services.ErrValidation, "mailbox", "parse", id+": no receipt time", nil)
	}
	if strings.TrimSpace(id) == "" {
		id = strings.Trim(header.MessageID, "<>")
	}
	return newsletter.Message{
		ID:         id,
		Sender:     strings.ToLower(strings.TrimSpace(sender)),
		Subject:    header.Subject,
		ReceivedAt: received.UTC(),
		Raw:        raw,
	}, nil
}

// retrieve runs get under policy and converts an exhausted retry into a
// Failure. Authentication errors are returned so the caller can abort.
func retrieve(ctx context.Context, policy retry.Policy, id string, get func(ctx context.Context) (newsletter.Message, error)) (newsletter.Message, *Failure, error) {
	var msg newsletter.Message
	err := retry.Do(ctx, policy, services.IsRetryable, func(int) error {
		var getErr error
		msg, getErr = get(ctx)
		return getErr
	})
	if err == nil {
		return msg, nil, nil
	}
	if services.Classify(err) == services.SeverityFatal || ctx.Err() != nil {
		return newsletter.Message{}, nil, err
	}
	return newsletter.Message{}, &Failure{MessageID: id, Err: err}, nil
}

// transient marks a network error so the retry policy will try again.
func transient(component, op string, err error) error {
	return services.Wrap(services.ErrTransient, component, op, "", err)
}
