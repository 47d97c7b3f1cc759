package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digestcast/internal/config"
	"digestcast/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunFailed(context.Background(), errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "uploaded",
			send: func(s notifications.Service) error {
				return s.NotifyRunCompleted(context.Background(), notifications.RunReport{
					Status:   "uploaded",
					Title:    "Daily Digest for 2024-03-01",
					Duration: 12*time.Minute + 3*time.Second + 400*time.Millisecond,
					Messages: 3,
					Failed:   1,
				})
			},
			expectTitle:   "Digest - Ready",
			expectMessage: "🎧 Daily Digest for 2024-03-01: 3 newsletters, 12m3s\n1 newsletters skipped after errors",
			expectTags:    "digestcast,uploaded",
		},
		{
			name: "nothing to compile",
			send: func(s notifications.Service) error {
				return s.NotifyRunCompleted(context.Background(), notifications.RunReport{Status: "nothing_to_compile"})
			},
			expectTitle:    "Digest - Nothing New",
			expectMessage:  "No new newsletters to convert",
			expectTags:     "digestcast,empty",
			expectPriority: "low",
		},
		{
			name: "upload failed",
			send: func(s notifications.Service) error {
				return s.NotifyRunCompleted(context.Background(), notifications.RunReport{Status: "upload_failed", Title: "Daily Digest for 2024-03-01"})
			},
			expectTitle:    "Digest - Upload Failed",
			expectMessage:  "Daily Digest for 2024-03-01 was compiled but not uploaded; it will be rebuilt next run",
			expectTags:     "digestcast,upload,failed",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyRunFailed(context.Background(), errors.New("authentication failed: mailbox.gmail"))
			},
			expectTitle:    "Digest - Error",
			expectMessage:  "❌ Digest run failed: authentication failed: mailbox.gmail",
			expectTags:     "digestcast,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	if err := notifications.NewService(&cfg).TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
