package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working, state, and output directories.
type Paths struct {
	WorkDir    string `toml:"work_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	ArchiveDir string `toml:"archive_dir"`
}

// Sender registers a newsletter address with the name spoken in chapters.
type Sender struct {
	Address string `toml:"address"`
	Name    string `toml:"name"`
}

// Sources configures where the newsletter registry comes from.
type Sources struct {
	// Remote selects an additional registry backend: none, webapi, or supabase.
	Remote  string   `toml:"remote"`
	Table   string   `toml:"table"`
	Senders []Sender `toml:"senders"`
}

// State configures the processed-message ledger.
type State struct {
	Driver        string `toml:"driver"`
	DSN           string `toml:"dsn"`
	LookbackHours int    `toml:"lookback_hours"`
}

// Gmail holds OAuth client credentials and the cached token location.
type Gmail struct {
	CredentialsPath string `toml:"credentials_path"`
	TokenPath       string `toml:"token_path"`
	User            string `toml:"user"`
}

// MailServer describes an IMAP or POP3 account.
type MailServer struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	TLS      bool   `toml:"tls"`
	Folder   string `toml:"folder"`
}

// Mailbox selects and configures the mail provider.
type Mailbox struct {
	Backend             string     `toml:"backend"`
	Concurrency         int        `toml:"concurrency"`
	RetryAttempts       int        `toml:"retry_attempts"`
	RetryBackoffSeconds int        `toml:"retry_backoff_seconds"`
	Gmail               Gmail      `toml:"gmail"`
	IMAP                MailServer `toml:"imap"`
	POP3                MailServer `toml:"pop3"`
	MaildirPath         string     `toml:"maildir_path"`
}

// Extract tunes how message bodies become speakable text.
type Extract struct {
	Readability bool `toml:"readability"`
	Intro       bool `toml:"intro"`
}

// Synth configures the text-to-speech engine.
type Synth struct {
	Engine         string   `toml:"engine"`
	MaxChars       int      `toml:"max_chars"`
	Workers        int      `toml:"workers"`
	Language       string   `toml:"language"`
	ReferenceVoice string   `toml:"reference_voice"`
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	Concurrent     bool     `toml:"concurrent"`
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	Model          string   `toml:"model"`
	Voice          string   `toml:"voice"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	RetryAttempts  int      `toml:"retry_attempts"`
}

// Audio configures ffmpeg assembly and encoding.
type Audio struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	Bitrate       string `toml:"bitrate"`
	SampleRate    int    `toml:"sample_rate"`
}

// Supabase holds project credentials shared by the upload and source backends.
type Supabase struct {
	URL    string `toml:"url"`
	Key    string `toml:"key"`
	Bucket string `toml:"bucket"`
	Table  string `toml:"table"`
}

// Upload configures artifact delivery.
type Upload struct {
	Backend             string `toml:"backend"`
	APIURL              string `toml:"api_url"`
	APIKey              string `toml:"api_key"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	RetryAttempts       int    `toml:"retry_attempts"`
	RetryBackoffSeconds int    `toml:"retry_backoff_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for digestcast.
//
// Configuration sections by subsystem:
//   - Paths: work, state, log, and archive directories
//   - Sources: the newsletter registry
//   - State: processed-message ledger backend
//   - Mailbox: mail provider and fetch retry policy
//   - Extract, Synth, Audio: text and audio production
//   - Supabase, Upload: artifact delivery
//   - Notifications, Logging: operator feedback
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sources       Sources       `toml:"sources"`
	State         State         `toml:"state"`
	Mailbox       Mailbox       `toml:"mailbox"`
	Extract       Extract       `toml:"extract"`
	Synth         Synth         `toml:"synth"`
	Audio         Audio         `toml:"audio"`
	Supabase      Supabase      `toml:"supabase"`
	Upload        Upload        `toml:"upload"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/digestcast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("digestcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) != "" {
		if err := os.MkdirAll(c.Paths.ArchiveDir, 0o755); err != nil {
			return fmt.Errorf("create archive directory %q: %w", c.Paths.ArchiveDir, err)
		}
	}
	return nil
}

// StatePath returns the SQLite ledger path used when state.driver is sqlite.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.StateDir, "state.db")
}

// LockPath returns the advisory lock file held for the duration of a run.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "run.lock")
}

// Lookback is how far a scheduled window reaches before the committed
// boundary, or before now when nothing has been committed.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.State.LookbackHours) * time.Hour
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.Audio.FFmpegBinary) == "" {
		return defaultFFmpegBinary
	}
	return c.Audio.FFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for duration probes.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.Audio.FFprobeBinary) == "" {
		return defaultFFprobeBinary
	}
	return c.Audio.FFprobeBinary
}

// ResolveSecrets replaces values of the form "keyring:<name>" using lookup.
// Only secrets belonging to the selected backends are resolved.
func (c *Config) ResolveSecrets(lookup func(name string) (string, error)) error {
	type secretField struct {
		key   string
		value *string
	}
	var fields []secretField
	switch c.Mailbox.Backend {
	case "imap":
		fields = append(fields, secretField{"mailbox.imap.password", &c.Mailbox.IMAP.Password})
	case "pop3":
		fields = append(fields, secretField{"mailbox.pop3.password", &c.Mailbox.POP3.Password})
	}
	if c.Synth.Engine == "http" {
		fields = append(fields, secretField{"synth.api_key", &c.Synth.APIKey})
	}
	if c.Upload.Backend == "supabase" || c.Sources.Remote == "supabase" {
		fields = append(fields, secretField{"supabase.key", &c.Supabase.Key})
	}
	if c.Upload.Backend == "webapi" || c.Sources.Remote == "webapi" {
		fields = append(fields, secretField{"upload.api_key", &c.Upload.APIKey})
	}
	if c.State.Driver == "postgres" {
		fields = append(fields, secretField{"state.dsn", &c.State.DSN})
	}
	for _, field := range fields {
		name, ok := strings.CutPrefix(strings.TrimSpace(*field.value), secretPrefix)
		if !ok {
			continue
		}
		if lookup == nil {
			return fmt.Errorf("%s: keyring reference %q but no credential store is available", field.key, name)
		}
		secret, err := lookup(strings.TrimSpace(name))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = secret
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
