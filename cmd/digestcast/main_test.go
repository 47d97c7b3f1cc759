package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/pelletier/go-toml/v2"

	"digestcast/internal/config"
	"digestcast/internal/credential"
	"digestcast/internal/newsletter"
	"digestcast/internal/pipeline"
	"digestcast/internal/testsupport"
)

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "digestcast.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestSourcesListsRegistryInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"sources"}, path)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	daily := strings.Index(out, "Daily News")
	tech := strings.Index(out, "Tech Weekly")
	if daily < 0 || tech < 0 || daily > tech {
		t.Fatalf("unexpected sources output:\n%s", out)
	}
	requireContains(t, out, "digest@tech.example")
}

func TestStateOnFreshLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"state"}, path)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	requireContains(t, out, "Processed messages: 0")
	requireContains(t, out, "Last window end: none")
}

func TestInvalidConfigFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Mailbox.Backend = "carrier-pigeon"
	path := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, []string{"state"}, path)
	if err == nil || !strings.Contains(err.Error(), "mailbox") {
		t.Fatalf("expected mailbox.backend error, got %v", err)
	}
}

func TestEnsureConfigResolvesKeyringSecrets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Upload.APIKey = "keyring:webapi"
	path := writeTestConfig(t, cfg)

	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "webapi", Data: []byte("s3cret")}})
	var level string
	ctx := newCommandContext(&path, &level)
	ctx.openCredentials = func(string) (secretStore, error) {
		return credential.NewStore(ring), nil
	}

	loaded, err := ctx.ensureConfig()
	if err != nil {
		t.Fatalf("ensureConfig: %v", err)
	}
	if loaded.Upload.APIKey != "s3cret" {
		t.Fatalf("api key = %q, want resolved secret", loaded.Upload.APIKey)
	}
}

func TestEnsureConfigReportsMissingSecret(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Upload.APIKey = "keyring:webapi"
	path := writeTestConfig(t, cfg)

	var level string
	ctx := newCommandContext(&path, &level)
	ctx.openCredentials = func(string) (secretStore, error) {
		return credential.NewStore(keyring.NewArrayKeyring(nil)), nil
	}
	if _, err := ctx.ensureConfig(); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCredentialSetReadsStdin(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	store := credential.NewStore(keyring.NewArrayKeyring(nil))
	var level string
	ctx := newCommandContext(&path, &level)
	ctx.openCredentials = func(string) (secretStore, error) { return store, nil }

	cmd := newCredentialCommand(ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("hunter2\n"))
	cmd.SetArgs([]string{"set", "imap"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("credential set: %v", err)
	}
	requireContains(t, out.String(), `"keyring:imap"`)
	got, err := store.Get("imap")
	if err != nil || got != "hunter2" {
		t.Fatalf("stored = %q, %v", got, err)
	}

	cmd = newCredentialCommand(ctx)
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{"set", "imap"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected empty secret to be rejected")
	}
}

func TestWindowFlags(t *testing.T) {
	loc := time.UTC
	day := func(s string) time.Time {
		d, _ := time.ParseInLocation(time.DateOnly, s, loc)
		return d
	}
	tests := []struct {
		name      string
		flags     windowFlags
		wantStart string
		wantEnd   string
		wantErr   bool
	}{
		{name: "default"},
		{name: "single day", flags: windowFlags{date: "2024-03-01"}, wantStart: "2024-03-01", wantEnd: "2024-03-02"},
		{name: "range inclusive", flags: windowFlags{from: "2024-03-01", to: "2024-03-03"}, wantStart: "2024-03-01", wantEnd: "2024-03-04"},
		{name: "open range", flags: windowFlags{from: "2024-03-01"}, wantStart: "2024-03-01"},
		{name: "same day range", flags: windowFlags{from: "2024-03-01", to: "2024-03-01"}, wantStart: "2024-03-01", wantEnd: "2024-03-02"},
		{name: "to without from", flags: windowFlags{to: "2024-03-01"}, wantErr: true},
		{name: "date with range", flags: windowFlags{date: "2024-03-01", from: "2024-03-01"}, wantErr: true},
		{name: "reversed", flags: windowFlags{from: "2024-03-05", to: "2024-03-01"}, wantErr: true},
		{name: "bad format", flags: windowFlags{date: "03/01/2024"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := tt.flags.resolve(loc)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			check := func(label string, got *time.Time, want string) {
				t.Helper()
				switch {
				case want == "" && got != nil:
					t.Fatalf("%s = %s, want nil", label, got)
				case want != "" && (got == nil || !got.Equal(day(want))):
					t.Fatalf("%s = %v, want %s", label, got, want)
				}
			}
			check("start", start, tt.wantStart)
			check("end", end, tt.wantEnd)
		})
	}
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, pipeline.Summary{
		RunID:       "run-1",
		Status:      pipeline.StatusUploaded,
		Fetched:     3,
		Synthesized: 2,
		Uploaded:    2,
		Title:       "Daily Digest for 2024-03-01",
		Duration:    125 * time.Second,
		Chapters: []newsletter.Chapter{
			{Title: "Daily News", Start: 0},
			{Title: "Tech Weekly", Start: 65 * time.Second},
		},
		ReceiptID: "42",
		Failures: []pipeline.MessageFailure{
			{MessageID: "m-3", Sender: "news@daily.example", Stage: "extract", Err: errors.New("no text")},
		},
	})
	text := out.String()
	for _, want := range []string{"run-1: uploaded", "Fetched 3, skipped 0, synthesized 2, uploaded 2", "(2:05)", "1:05", "Tech Weekly", "Receipt: 42", "no text"} {
		requireContains(t, text, want)
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{59*time.Second + 600*time.Millisecond, "1:00"},
		{3*time.Hour + 4*time.Minute + 5*time.Second, "3:04:05"},
	}
	for _, tt := range tests {
		if got := formatClock(tt.in); got != tt.want {
			t.Fatalf("formatClock(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
