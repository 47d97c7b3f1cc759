package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"digestcast/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
[[sources.senders]]
address = "news@daily.example"
name = "Daily News"

[upload]
api_url = "https://digest.example/"
`

func TestLoadMinimalConfigAppliesDefaultsAndEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DIGESTCAST_API_KEY", "secret-key")

	cfg, resolved, exists, err := config.Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected config to exist, got exists=%v resolved=%q", exists, resolved)
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "digestcast", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Upload.APIURL != "https://digest.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Upload.APIURL)
	}
	if cfg.Upload.APIKey != "secret-key" {
		t.Fatalf("expected api key from env, got %q", cfg.Upload.APIKey)
	}
	if cfg.Synth.MaxChars != config.Default().Synth.MaxChars {
		t.Fatalf("unexpected max chars: %d", cfg.Synth.MaxChars)
	}
	if cfg.Lookback().Hours() != 24 {
		t.Fatalf("unexpected lookback: %s", cfg.Lookback())
	}
	if cfg.Synth.Language != "en" {
		t.Fatalf("unexpected language: %q", cfg.Synth.Language)
	}
	if !cfg.Extract.Intro {
		t.Fatal("expected intro line enabled by default")
	}
	if got := cfg.StatePath(); got != filepath.Join(tempHome, ".local", "share", "digestcast", "state.db") {
		t.Fatalf("unexpected state path: %q", got)
	}
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected binaries: %q %q", cfg.FFmpegBinary(), cfg.FFprobeBinary())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DIGESTCAST_API_KEY", "k")

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no senders",
			body: "[upload]\napi_url = \"http://x\"\n",
			want: "sources.senders",
		},
		{
			name: "duplicate sender",
			body: minimalConfig + "\n[[sources.senders]]\naddress = \"NEWS@daily.example\"\n",
			want: "registered twice",
		},
		{
			name: "unknown mailbox backend",
			body: minimalConfig + "\n[mailbox]\nbackend = \"carrier-pigeon\"\n",
			want: "mailbox.backend",
		},
		{
			name: "imap without host",
			body: minimalConfig + "\n[mailbox]\nbackend = \"imap\"\n",
			want: "mailbox.imap.host",
		},
		{
			name: "postgres without dsn",
			body: minimalConfig + "\n[state]\ndriver = \"postgres\"\n",
			want: "state.dsn",
		},
		{
			name: "http engine without url",
			body: minimalConfig + "\n[synth]\nengine = \"http\"\n",
			want: "synth.base_url",
		},
		{
			name: "command args without output",
			body: minimalConfig + "\n[synth]\nargs = [\"--text\", \"{text_file}\"]\n",
			want: "{output}",
		},
		{
			name: "bad language tag",
			body: minimalConfig + "\n[synth]\nlanguage = \"not a tag\"\n",
			want: "synth.language",
		},
		{
			name: "supabase upload without url",
			body: "[[sources.senders]]\naddress = \"a@b.example\"\n\n[upload]\nbackend = \"supabase\"\n",
			want: "supabase.url",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := config.Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if len(cfg.Sources.Senders) != 2 {
		t.Fatalf("expected two example senders, got %d", len(cfg.Sources.Senders))
	}
	if cfg.Upload.APIKey != "keyring:webapi" {
		t.Fatalf("expected keyring reference, got %q", cfg.Upload.APIKey)
	}
}

func TestResolveSecretsUsesLookupForSelectedBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Upload.APIKey = "keyring:webapi"
	cfg.Mailbox.IMAP.Password = "keyring:imap"

	var asked []string
	err := cfg.ResolveSecrets(func(name string) (string, error) {
		asked = append(asked, name)
		return "resolved-" + name, nil
	})
	if err != nil {
		t.Fatalf("ResolveSecrets: %v", err)
	}
	if cfg.Upload.APIKey != "resolved-webapi" {
		t.Fatalf("unexpected api key %q", cfg.Upload.APIKey)
	}
	if cfg.Mailbox.IMAP.Password != "keyring:imap" {
		t.Fatalf("imap password should be untouched for gmail backend, got %q", cfg.Mailbox.IMAP.Password)
	}
	if len(asked) != 1 {
		t.Fatalf("expected one lookup, got %v", asked)
	}
}

func TestResolveSecretsRequiresLookup(t *testing.T) {
	cfg := config.Default()
	cfg.Upload.APIKey = "keyring:webapi"
	if err := cfg.ResolveSecrets(nil); err == nil {
		t.Fatal("expected error without credential store")
	}
}

func TestLoadReducesLanguageTag(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DIGESTCAST_API_KEY", "k")

	cfg, _, _, err := config.Load(writeConfig(t, minimalConfig+"\n[synth]\nlanguage = \"pt-BR\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Synth.Language != "pt" {
		t.Fatalf("language = %q, want pt", cfg.Synth.Language)
	}
}
