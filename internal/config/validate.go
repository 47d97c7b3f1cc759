package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateState(); err != nil {
		return err
	}
	if err := c.validateMailbox(); err != nil {
		return err
	}
	if err := c.validateSynth(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSources() error {
	switch c.Sources.Remote {
	case "none":
	case "webapi":
		if c.Upload.APIURL == "" {
			return errors.New("upload.api_url must be set when sources.remote is webapi")
		}
	case "supabase":
		if err := c.requireSupabase("sources.remote"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("sources.remote: unsupported value %q (want none, webapi, or supabase)", c.Sources.Remote)
	}
	seen := make(map[string]struct{}, len(c.Sources.Senders))
	for idx, sender := range c.Sources.Senders {
		if sender.Address == "" || !strings.Contains(sender.Address, "@") {
			return fmt.Errorf("sources.senders[%d].address must be an email address", idx)
		}
		key := strings.ToLower(sender.Address)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("sources.senders[%d].address %q is registered twice", idx, sender.Address)
		}
		seen[key] = struct{}{}
	}
	if c.Sources.Remote == "none" && len(c.Sources.Senders) == 0 {
		return errors.New("sources.senders must list at least one newsletter when sources.remote is none")
	}
	return nil
}

func (c *Config) validateState() error {
	switch c.State.Driver {
	case "sqlite":
	case "postgres":
		if c.State.DSN == "" {
			return errors.New("state.dsn must be set when state.driver is postgres (or set DIGESTCAST_STATE_DSN)")
		}
	default:
		return fmt.Errorf("state.driver: unsupported value %q (want sqlite or postgres)", c.State.Driver)
	}
	return nil
}

func (c *Config) validateMailbox() error {
	switch c.Mailbox.Backend {
	case "gmail":
		if c.Mailbox.Gmail.CredentialsPath == "" {
			return errors.New("mailbox.gmail.credentials_path must be set when mailbox.backend is gmail")
		}
		if c.Mailbox.Gmail.TokenPath == "" {
			return errors.New("mailbox.gmail.token_path must be set when mailbox.backend is gmail")
		}
	case "imap":
		if err := validateServer("mailbox.imap", c.Mailbox.IMAP); err != nil {
			return err
		}
	case "pop3":
		if err := validateServer("mailbox.pop3", c.Mailbox.POP3); err != nil {
			return err
		}
	case "maildir":
		if c.Mailbox.MaildirPath == "" {
			return errors.New("mailbox.maildir_path must be set when mailbox.backend is maildir")
		}
	default:
		return fmt.Errorf("mailbox.backend: unsupported value %q (want gmail, imap, pop3, or maildir)", c.Mailbox.Backend)
	}
	return nil
}

func validateServer(prefix string, server MailServer) error {
	if server.Host == "" {
		return fmt.Errorf("%s.host must be set", prefix)
	}
	if server.Username == "" {
		return fmt.Errorf("%s.username must be set", prefix)
	}
	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535", prefix)
	}
	return nil
}

func (c *Config) validateSynth() error {
	switch c.Synth.Engine {
	case "command":
		if c.Synth.Command == "" {
			return errors.New("synth.command must be set when synth.engine is command")
		}
		if !argsReference(c.Synth.Args, "{output}") {
			return errors.New("synth.args must reference {output} so the engine knows where to write audio")
		}
	case "http":
		if c.Synth.BaseURL == "" {
			return errors.New("synth.base_url must be set when synth.engine is http")
		}
	default:
		return fmt.Errorf("synth.engine: unsupported value %q (want command or http)", c.Synth.Engine)
	}
	if c.Synth.MaxChars < 20 {
		return errors.New("synth.max_chars must be at least 20")
	}
	return nil
}

func argsReference(args []string, placeholder string) bool {
	for _, arg := range args {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}

func (c *Config) validateUpload() error {
	switch c.Upload.Backend {
	case "webapi":
		if c.Upload.APIURL == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/digestcast/config.toml"
			}
			return fmt.Errorf("upload.api_url is required. Edit %s (create with 'digestcast config init')", defaultPath)
		}
		if c.Upload.APIKey == "" {
			return errors.New("upload.api_key is required for the webapi backend. Set DIGESTCAST_API_KEY or store it with 'digestcast credential set'")
		}
	case "supabase":
		if err := c.requireSupabase("upload.backend"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("upload.backend: unsupported value %q (want webapi or supabase)", c.Upload.Backend)
	}
	return nil
}

func (c *Config) requireSupabase(field string) error {
	if c.Supabase.URL == "" {
		return fmt.Errorf("supabase.url must be set when %s is supabase (or set SUPABASE_URL)", field)
	}
	if c.Supabase.Key == "" {
		return fmt.Errorf("supabase.key must be set when %s is supabase (or set SUPABASE_KEY)", field)
	}
	return nil
}
