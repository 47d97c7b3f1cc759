package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"digestcast/internal/config"
)

const userAgent = "digestcast/0.1"

// RunReport summarizes a finished run for the notification body.
type RunReport struct {
	Status    string
	Title     string
	Duration  time.Duration
	Messages  int
	Failed    int
	ReceiptID string
}

// Service defines the notification surface used by the pipeline.
type Service interface {
	NotifyRunCompleted(ctx context.Context, report RunReport) error
	NotifyRunFailed(ctx context.Context, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, report RunReport) error {
	switch report.Status {
	case "nothing_to_compile":
		return n.send(ctx, payload{
			title:    "Digest - Nothing New",
			message:  "No new newsletters to convert",
			tags:     []string{"digestcast", "empty"},
			priority: "low",
		})
	case "uploaded":
		message := fmt.Sprintf("🎧 %s: %d newsletters, %s", report.Title, report.Messages, formatDuration(report.Duration))
		if report.Failed > 0 {
			message += fmt.Sprintf("\n%d newsletters skipped after errors", report.Failed)
		}
		return n.send(ctx, payload{
			title:   "Digest - Ready",
			message: message,
			tags:    []string{"digestcast", "uploaded"},
		})
	default:
		return n.send(ctx, payload{
			title:    "Digest - Upload Failed",
			message:  fmt.Sprintf("%s was compiled but not uploaded; it will be rebuilt next run", report.Title),
			tags:     []string{"digestcast", "upload", "failed"},
			priority: "high",
		})
	}
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ Digest run failed: ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Digest - Error",
		message:  builder.String(),
		tags:     []string{"digestcast", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Digest - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"digestcast", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunReport) error { return nil }
func (noopService) NotifyRunFailed(context.Context, error) error        { return nil }
func (noopService) TestNotification(context.Context) error              { return nil }
