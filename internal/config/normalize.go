package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSources()
	c.normalizeState()
	if err := c.normalizeMailbox(); err != nil {
		return err
	}
	if err := c.normalizeSynth(); err != nil {
		return err
	}
	c.normalizeAudio()
	c.normalizeSupabase()
	c.normalizeUpload()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ArchiveDir, err = expandPath(strings.TrimSpace(c.Paths.ArchiveDir)); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSources() {
	c.Sources.Remote = strings.ToLower(strings.TrimSpace(c.Sources.Remote))
	if c.Sources.Remote == "" {
		c.Sources.Remote = "none"
	}
	c.Sources.Table = strings.TrimSpace(c.Sources.Table)
	if c.Sources.Table == "" {
		c.Sources.Table = defaultSourcesTable
	}
	for i := range c.Sources.Senders {
		c.Sources.Senders[i].Address = strings.TrimSpace(c.Sources.Senders[i].Address)
		c.Sources.Senders[i].Name = strings.TrimSpace(c.Sources.Senders[i].Name)
	}
}

func (c *Config) normalizeState() {
	c.State.Driver = strings.ToLower(strings.TrimSpace(c.State.Driver))
	switch c.State.Driver {
	case "":
		c.State.Driver = defaultStateDriver
	case "postgresql", "pgx":
		c.State.Driver = "postgres"
	}
	c.State.DSN = strings.TrimSpace(c.State.DSN)
	if c.State.DSN == "" && c.State.Driver == "postgres" {
		if value, ok := os.LookupEnv("DIGESTCAST_STATE_DSN"); ok {
			c.State.DSN = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("DATABASE_URL"); ok {
			c.State.DSN = strings.TrimSpace(value)
		}
	}
	if c.State.LookbackHours <= 0 {
		c.State.LookbackHours = defaultLookbackHours
	}
}

func (c *Config) normalizeMailbox() error {
	c.Mailbox.Backend = strings.ToLower(strings.TrimSpace(c.Mailbox.Backend))
	if c.Mailbox.Backend == "" {
		c.Mailbox.Backend = defaultMailboxBackend
	}
	if c.Mailbox.Concurrency <= 0 {
		c.Mailbox.Concurrency = defaultMailboxConcurrency
	}
	if c.Mailbox.RetryAttempts <= 0 {
		c.Mailbox.RetryAttempts = defaultMailRetryAttempts
	}
	if c.Mailbox.RetryBackoffSeconds < 0 {
		c.Mailbox.RetryBackoffSeconds = 0
	}

	var err error
	if c.Mailbox.Gmail.CredentialsPath, err = expandPath(c.Mailbox.Gmail.CredentialsPath); err != nil {
		return fmt.Errorf("mailbox.gmail.credentials_path: %w", err)
	}
	if c.Mailbox.Gmail.TokenPath, err = expandPath(c.Mailbox.Gmail.TokenPath); err != nil {
		return fmt.Errorf("mailbox.gmail.token_path: %w", err)
	}
	if strings.TrimSpace(c.Mailbox.Gmail.User) == "" {
		c.Mailbox.Gmail.User = defaultGmailUser
	}
	if c.Mailbox.MaildirPath, err = expandPath(strings.TrimSpace(c.Mailbox.MaildirPath)); err != nil {
		return fmt.Errorf("mailbox.maildir_path: %w", err)
	}

	c.Mailbox.IMAP.Host = strings.TrimSpace(c.Mailbox.IMAP.Host)
	if c.Mailbox.IMAP.Port <= 0 {
		c.Mailbox.IMAP.Port = defaultIMAPPort
	}
	if strings.TrimSpace(c.Mailbox.IMAP.Folder) == "" {
		c.Mailbox.IMAP.Folder = defaultIMAPFolder
	}
	if c.Mailbox.IMAP.Password == "" {
		if value, ok := os.LookupEnv("DIGESTCAST_IMAP_PASSWORD"); ok {
			c.Mailbox.IMAP.Password = value
		}
	}
	c.Mailbox.POP3.Host = strings.TrimSpace(c.Mailbox.POP3.Host)
	if c.Mailbox.POP3.Port <= 0 {
		c.Mailbox.POP3.Port = defaultPOP3Port
	}
	if c.Mailbox.POP3.Password == "" {
		if value, ok := os.LookupEnv("DIGESTCAST_POP3_PASSWORD"); ok {
			c.Mailbox.POP3.Password = value
		}
	}
	return nil
}

func (c *Config) normalizeSynth() error {
	c.Synth.Engine = strings.ToLower(strings.TrimSpace(c.Synth.Engine))
	if c.Synth.Engine == "" {
		c.Synth.Engine = defaultSynthEngine
	}
	if c.Synth.MaxChars <= 0 {
		c.Synth.MaxChars = defaultSynthMaxChars
	}
	if c.Synth.Workers <= 0 {
		c.Synth.Workers = defaultSynthWorkers
	}
	if strings.TrimSpace(c.Synth.Language) == "" {
		c.Synth.Language = defaultSynthLanguage
	}
	base, err := speechLanguage(c.Synth.Language)
	if err != nil {
		return fmt.Errorf("synth.language: %w", err)
	}
	c.Synth.Language = base
	c.Synth.Command = strings.TrimSpace(c.Synth.Command)
	if c.Synth.Command == "" {
		c.Synth.Command = defaultSynthCommand
	}
	if len(c.Synth.Args) == 0 {
		c.Synth.Args = append([]string(nil), defaultSynthArgs...)
	}
	c.Synth.BaseURL = strings.TrimRight(strings.TrimSpace(c.Synth.BaseURL), "/")
	if strings.TrimSpace(c.Synth.Model) == "" {
		c.Synth.Model = defaultSynthModel
	}
	if strings.TrimSpace(c.Synth.Voice) == "" {
		c.Synth.Voice = defaultSynthVoice
	}
	c.Synth.APIKey = strings.TrimSpace(c.Synth.APIKey)
	if c.Synth.APIKey == "" {
		if value, ok := os.LookupEnv("DIGESTCAST_TTS_API_KEY"); ok {
			c.Synth.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Synth.TimeoutSeconds <= 0 {
		c.Synth.TimeoutSeconds = defaultSynthTimeoutSeconds
	}
	if c.Synth.RetryAttempts <= 0 {
		c.Synth.RetryAttempts = defaultSynthRetryAttempts
	}
	if c.Synth.ReferenceVoice, err = expandPath(strings.TrimSpace(c.Synth.ReferenceVoice)); err != nil {
		return fmt.Errorf("synth.reference_voice: %w", err)
	}
	return nil
}

// speechLanguage reduces a BCP 47 tag such as "en-US" to the two-letter base
// language speech engines expect.
func speechLanguage(value string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("%q is not a language tag", value)
	}
	base, _ := tag.Base()
	return base.String(), nil
}

func (c *Config) normalizeAudio() {
	c.Audio.FFmpegBinary = strings.TrimSpace(c.Audio.FFmpegBinary)
	c.Audio.FFprobeBinary = strings.TrimSpace(c.Audio.FFprobeBinary)
	c.Audio.Bitrate = strings.TrimSpace(c.Audio.Bitrate)
	if c.Audio.Bitrate == "" {
		c.Audio.Bitrate = defaultAudioBitrate
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultAudioSampleRate
	}
}

func (c *Config) normalizeSupabase() {
	c.Supabase.URL = strings.TrimRight(strings.TrimSpace(c.Supabase.URL), "/")
	if c.Supabase.URL == "" {
		if value, ok := os.LookupEnv("SUPABASE_URL"); ok {
			c.Supabase.URL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	c.Supabase.Key = strings.TrimSpace(c.Supabase.Key)
	if c.Supabase.Key == "" {
		if value, ok := os.LookupEnv("SUPABASE_KEY"); ok {
			c.Supabase.Key = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Supabase.Bucket) == "" {
		c.Supabase.Bucket = defaultSupabaseBucket
	}
	if strings.TrimSpace(c.Supabase.Table) == "" {
		c.Supabase.Table = defaultSupabaseTable
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.Backend = strings.ToLower(strings.TrimSpace(c.Upload.Backend))
	if c.Upload.Backend == "" {
		c.Upload.Backend = defaultUploadBackend
	}
	c.Upload.APIURL = strings.TrimRight(strings.TrimSpace(c.Upload.APIURL), "/")
	if c.Upload.APIURL == "" {
		if value, ok := os.LookupEnv("DIGESTCAST_API_URL"); ok {
			c.Upload.APIURL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	c.Upload.APIKey = strings.TrimSpace(c.Upload.APIKey)
	if c.Upload.APIKey == "" {
		if value, ok := os.LookupEnv("DIGESTCAST_API_KEY"); ok {
			c.Upload.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Upload.TimeoutSeconds <= 0 {
		c.Upload.TimeoutSeconds = defaultUploadTimeout
	}
	if c.Upload.RetryAttempts <= 0 {
		c.Upload.RetryAttempts = defaultUploadRetryAttempts
	}
	if c.Upload.RetryBackoffSeconds < 0 {
		c.Upload.RetryBackoffSeconds = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
