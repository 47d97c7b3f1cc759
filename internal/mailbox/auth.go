package mailbox

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"digestcast/internal/config"
	"digestcast/internal/retry"
	"digestcast/internal/services"
)

// LoadOAuthConfig reads a Google OAuth client secret file with the readonly
// Gmail scope.
func LoadOAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "mailbox.gmail", "read credentials", credentialsPath, err)
	}
	cfg, err := google.ConfigFromJSON(data, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "mailbox.gmail", "parse credentials", credentialsPath, err)
	}
	return cfg, nil
}

// TokenFromFile loads a cached OAuth token.
func TokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

// SaveToken writes tok to path readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("encode oauth token: %w", err)
	}
	return nil
}

// Authorize runs the interactive consent flow: it prints the consent URL to
// out, reads the pasted authorization code from in, and caches the token.
func Authorize(ctx context.Context, oauthCfg *oauth2.Config, tokenPath string, in io.Reader, out io.Writer) error {
	authURL := oauthCfg.AuthCodeURL("digestcast", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open the following link in your browser, then paste the authorization code:\n%s\n> ", authURL)

	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return services.Wrap(services.ErrValidation, "mailbox.gmail", "authorize", "no authorization code entered", nil)
	}
	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return services.Wrap(services.ErrAuthentication, "mailbox.gmail", "exchange code", "", err)
	}
	if err := SaveToken(tokenPath, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token saved to %s\n", tokenPath)
	return nil
}

// openGmail builds a fetcher from cached credentials. A missing token is an
// authentication error; the run never prompts.
func openGmail(ctx context.Context, cfg config.Gmail, policy retry.Policy, logger *slog.Logger) (*GmailFetcher, error) {
	oauthCfg, err := LoadOAuthConfig(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}
	tok, err := TokenFromFile(cfg.TokenPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrAuthentication, "mailbox.gmail", "load token", "no cached token; run `digestcast auth gmail`", nil)
		}
		return nil, services.Wrap(services.ErrAuthentication, "mailbox.gmail", "load token", cfg.TokenPath, err)
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "mailbox.gmail", "create service", "", err)
	}
	return NewGmailFetcher(srv, cfg.User, policy, logger), nil
}
