package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"digestcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It registers two senders, reads mail from a maildir under the temp root,
// and defaults common fields before applying opts.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths = config.Paths{
		WorkDir:  filepath.Join(base, "work"),
		StateDir: filepath.Join(base, "state"),
		LogDir:   filepath.Join(base, "logs"),
	}
	cfgVal.Sources.Senders = []config.Sender{
		{Address: "news@daily.example", Name: "Daily News"},
		{Address: "digest@tech.example", Name: "Tech Weekly"},
	}
	cfgVal.Mailbox.Backend = "maildir"
	cfgVal.Mailbox.MaildirPath = filepath.Join(base, "mail")
	cfgVal.Upload.APIURL = "http://127.0.0.1:0"
	cfgVal.Upload.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSenders replaces the registered senders.
func WithSenders(senders ...config.Sender) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources.Senders = append([]config.Sender(nil), senders...)
	}
}

// WithArchiveDir enables the post-upload archive copy.
func WithArchiveDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.ArchiveDir = filepath.Join(b.baseDir, "archive")
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg, ffprobe, and the
// configured synth command are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", b.cfg.Synth.Command}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
