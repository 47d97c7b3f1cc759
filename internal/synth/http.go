package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
	"digestcast/internal/services"
)

const (
	speechPath         = "/v1/audio/speech"
	defaultHTTPTimeout = 120 * time.Second
	maxErrorBody       = 4096
)

// HTTPConfig captures the settings for a speech API server.
type HTTPConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// HTTPEngine calls an OpenAI-compatible speech endpoint.
type HTTPEngine struct {
	cfg        HTTPConfig
	endpoint   string
	voice      Voice
	meter     DurationMeter
	httpClient *http.Client
	logger     *slog.Logger
}

// HTTPOption customizes the engine.
type HTTPOption func(*HTTPEngine)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(e *HTTPEngine) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// NewHTTPEngine validates cfg and returns an engine.
func NewHTTPEngine(cfg HTTPConfig, voice Voice, meter DurationMeter, logger *slog.Logger, opts ...HTTPOption) (*HTTPEngine, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "synth.http", "open", "base url required", nil)
	}
	endpoint := base
	if !strings.HasSuffix(base, speechPath) {
		joined, err := url.JoinPath(base, speechPath)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "synth.http", "open", "invalid base url", err)
		}
		endpoint = joined
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	engine := &HTTPEngine{
		cfg:        cfg,
		endpoint:   endpoint,
		voice:      voice,
		meter:     meter,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "synth.http"),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice,omitempty"`
	ResponseFormat string `json:"response_format"`
	Language       string `json:"language,omitempty"`
	SpeakerWAV     string `json:"speaker_wav,omitempty"`
}

// StatusError is a non-2xx response from a speech server.
type StatusError struct {
	StatusCode int
	Body       string
	Wait       time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("speech request: http %d: %s", e.StatusCode, e.Body)
}

// RetryAfter exposes the server's Retry-After hint.
func (e *StatusError) RetryAfter() time.Duration {
	return e.Wait
}

// Synthesize posts the chunk text and writes the returned audio to outPath.
func (e *HTTPEngine) Synthesize(ctx context.Context, chunk newsletter.TextChunk, outPath string) (newsletter.AudioChunk, error) {
	payload, err := json.Marshal(speechRequest{
		Model:          e.cfg.Model,
		Input:          chunk.Text,
		Voice:          e.voice.Name,
		ResponseFormat: "wav",
		Language:       e.voice.Language,
		SpeakerWAV:     e.voice.ReferencePath,
	})
	if err != nil {
		return newsletter.AudioChunk{}, fmt.Errorf("speech request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return newsletter.AudioChunk{}, fmt.Errorf("speech request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")
	if key := strings.TrimSpace(e.cfg.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return newsletter.AudioChunk{}, classifyTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return newsletter.AudioChunk{}, classifyStatus(&StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Wait:       wait,
		})
	}

	if err := writeBody(outPath, resp.Body); err != nil {
		return newsletter.AudioChunk{}, services.Wrap(services.ErrTransient, "synth.http", "read audio", "", err)
	}
	return finish(ctx, e.meter, e.logger, chunk, outPath)
}

// Concurrent is true; the server queues concurrent requests itself.
func (e *HTTPEngine) Concurrent() bool {
	return true
}

// Close releases idle connections.
func (e *HTTPEngine) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

func writeBody(path string, body io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func classifyStatus(err *StatusError) error {
	switch {
	case err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrAuthentication, "synth.http", "speech", "check synth.api_key", err)
	case err.StatusCode == http.StatusRequestTimeout || err.StatusCode == http.StatusTooManyRequests || err.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "synth.http", "speech", "", err)
	default:
		return services.Wrap(services.ErrValidation, "synth.http", "speech", "request rejected", err)
	}
}

func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "synth.http", "speech", "", err)
	}
	return services.Wrap(services.ErrTransient, "synth.http", "speech", "", err)
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
		if d := time.Until(when); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
