package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"digestcast/internal/services"
)

// Loader fetches additional registry entries from a remote backend.
type Loader interface {
	Load(ctx context.Context) ([]Source, error)
}

// WebAPILoader reads GET {base}/api/v1/sources from the digest web backend.
type WebAPILoader struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewWebAPILoader constructs a loader for the web backend. A nil client uses
// a 30 second timeout.
func NewWebAPILoader(baseURL, apiKey string, client *http.Client) *WebAPILoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebAPILoader{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, httpClient: client}
}

// Load implements Loader.
func (l *WebAPILoader) Load(ctx context.Context) ([]Source, error) {
	endpoint, err := url.JoinPath(l.baseURL, "api", "v1", "sources")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "sources", "build url", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "sources", "new request", "", err)
	}
	req.Header.Set("Accept", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "sources", "list", "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "sources", "list", "read body", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, services.Wrap(services.ErrAuthentication, "sources", "list", fmt.Sprintf("http %d", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, services.Wrap(services.ErrTransient, "sources", "list", fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	var entries []Source
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, services.Wrap(services.ErrValidation, "sources", "decode", "unexpected response body", err)
	}
	return entries, nil
}

// RowSelector is the subset of the Supabase client used to read a table.
type RowSelector interface {
	SelectInto(table, columns string, dest any) error
}

// SupabaseLoader reads sender_email and custom_name columns from a table.
type SupabaseLoader struct {
	client RowSelector
	table  string
}

// NewSupabaseLoader constructs a loader reading table through client.
func NewSupabaseLoader(client RowSelector, table string) *SupabaseLoader {
	return &SupabaseLoader{client: client, table: table}
}

// Load implements Loader.
func (l *SupabaseLoader) Load(ctx context.Context) ([]Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []Source
	if err := l.client.SelectInto(l.table, "sender_email,custom_name", &entries); err != nil {
		return nil, services.Wrap(services.ErrTransient, "sources", "supabase select", l.table, err)
	}
	return entries, nil
}
