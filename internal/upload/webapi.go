package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
	"digestcast/internal/retry"
	"digestcast/internal/services"
)

const maxErrorBody = 4096

// WebAPIConfig describes the digest web backend.
type WebAPIConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Policy  retry.Policy
}

// WebAPI posts audiobooks to {base}/api/v1/audiobooks.
type WebAPI struct {
	endpoint   string
	apiKey     string
	policy     retry.Policy
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a WebAPI uploader.
type Option func(*WebAPI)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(w *WebAPI) {
		if client != nil {
			w.httpClient = client
		}
	}
}

// NewWebAPI validates cfg and returns an uploader.
func NewWebAPI(cfg WebAPIConfig, logger *slog.Logger, opts ...Option) (*WebAPI, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "upload.webapi", "open", "upload.api_url required", nil)
	}
	endpoint, err := url.JoinPath(base, "api", "v1", "audiobooks")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload.webapi", "open", "invalid upload.api_url", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	w := &WebAPI{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		policy:     cfg.Policy,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "upload.webapi"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	Body       string
	Wait       time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upload: http %d", e.StatusCode)
	}
	return fmt.Sprintf("upload: http %d: %s", e.StatusCode, e.Body)
}

// RetryAfter exposes the Retry-After hint.
func (e *StatusError) RetryAfter() time.Duration {
	return e.Wait
}

type uploadResponse struct {
	ID  json.RawMessage `json:"id"`
	URL string          `json:"url"`
}

// Upload sends book, retrying network failures, 429, and 5xx responses.
func (w *WebAPI) Upload(ctx context.Context, book newsletter.Audiobook) (newsletter.Receipt, error) {
	meta, err := MetadataFor(book)
	if err != nil {
		return newsletter.Receipt{}, err
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return newsletter.Receipt{}, fmt.Errorf("encode metadata: %w", err)
	}
	if _, err := os.Stat(book.Path); err != nil {
		return newsletter.Receipt{}, services.Wrap(services.ErrValidation, "upload.webapi", "stat artifact", book.Path, err)
	}

	var receipt newsletter.Receipt
	err = retry.Do(ctx, w.policy, services.IsRetryable, func(attempt int) error {
		var postErr error
		receipt, postErr = w.post(ctx, book.Path, metaJSON)
		if postErr != nil && services.IsRetryable(postErr) && attempt < max(w.policy.Attempts, 1) {
			logging.WarnWithContext(w.logger, "upload attempt failed; retrying", "upload_retry",
				logging.Int("attempt", attempt),
				logging.Error(postErr),
				logging.Impact("upload delayed"),
				logging.ErrorHint("check the backend at upload.api_url"),
			)
		}
		return postErr
	})
	if err != nil {
		return newsletter.Receipt{}, err
	}
	w.logger.Info("audiobook uploaded",
		logging.String("title", book.Title),
		logging.String("receipt_id", receipt.ID),
	)
	return receipt, nil
}

func (w *WebAPI) post(ctx context.Context, path string, metadata []byte) (newsletter.Receipt, error) {
	file, err := os.Open(path)
	if err != nil {
		return newsletter.Receipt{}, services.Wrap(services.ErrValidation, "upload.webapi", "open artifact", path, err)
	}
	defer file.Close()

	body, writer := io.Pipe()
	defer body.Close()
	form := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeForm(form, file, filepath.Base(path), metadata))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, body)
	if err != nil {
		return newsletter.Receipt{}, fmt.Errorf("upload: new request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return newsletter.Receipt{}, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return newsletter.Receipt{}, classifyStatus(&StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
			Wait:       wait,
		})
	}

	var decoded uploadResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return newsletter.Receipt{}, services.Wrap(services.ErrTransient, "upload.webapi", "read response", "", err)
	}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			w.logger.Debug("upload response is not JSON", logging.Error(err))
		}
	}
	return newsletter.Receipt{ID: rawID(decoded.ID), URL: decoded.URL}, nil
}

func writeForm(form *multipart.Writer, file io.Reader, filename string, metadata []byte) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio_file"; filename=%q`, filename))
	header.Set("Content-Type", "audio/mpeg")
	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	metaHeader := make(textproto.MIMEHeader)
	metaHeader.Set("Content-Disposition", `form-data; name="metadata"`)
	metaHeader.Set("Content-Type", "application/json")
	metaPart, err := form.CreatePart(metaHeader)
	if err != nil {
		return err
	}
	if _, err := metaPart.Write(metadata); err != nil {
		return err
	}
	return form.Close()
}

// rawID renders a JSON string or number id as text.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func classifyStatus(err *StatusError) error {
	switch {
	case err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrAuthentication, "upload.webapi", "post", "check upload.api_key", err)
	case err.StatusCode == http.StatusRequestTimeout || err.StatusCode == http.StatusTooManyRequests || err.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "upload.webapi", "post", "", err)
	default:
		return services.Wrap(services.ErrRejected, "upload.webapi", "post", "backend rejected the audiobook", err)
	}
}

func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "upload.webapi", "post", "", err)
	}
	return services.Wrap(services.ErrTransient, "upload.webapi", "post", "", err)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0), true
	}
	return 0, false
}
