package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ErrEmpty is returned when a message contains nothing worth speaking.
var ErrEmpty = errors.New("message has no speakable text")

// Options tunes extraction.
type Options struct {
	// Readability runs article extraction over HTML bodies before rendering.
	Readability bool
}

// Extractor converts raw messages to normalized text.
type Extractor struct {
	opts Options
}

// New returns an Extractor.
func New(opts Options) *Extractor {
	return &Extractor{opts: opts}
}

// Extract returns the normalized text of raw, or ErrEmpty.
func (e *Extractor) Extract(raw []byte) (string, error) {
	body, err := selectBody(raw)
	if err != nil {
		return "", err
	}

	var paragraphs []string
	if body.html != "" {
		paragraphs, err = e.renderHTML(body.html)
		if err != nil {
			return "", err
		}
	}
	if len(paragraphs) == 0 && body.plain != "" {
		paragraphs = renderPlain(body.plain)
	}

	text := joinParagraphs(dropBoilerplate(normalizeParagraphs(paragraphs)))
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

type messageBody struct {
	plain string
	html  string
}

// selectBody keeps the first inline text/html and text/plain parts.
// Attachments are ignored.
func selectBody(raw []byte) (messageBody, error) {
	var body messageBody
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return body, fmt.Errorf("parse message: %w", err)
	}
	defer reader.Close()

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && (part == nil || !message.IsUnknownCharset(err)) {
			return body, fmt.Errorf("read message part: %w", err)
		}
		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}
		switch {
		case strings.EqualFold(contentType, "text/html") && body.html == "":
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				return body, fmt.Errorf("read html part: %w", readErr)
			}
			body.html = string(data)
		case strings.EqualFold(contentType, "text/plain") && body.plain == "":
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				return body, fmt.Errorf("read text part: %w", readErr)
			}
			body.plain = string(data)
		}
	}
	return body, nil
}
