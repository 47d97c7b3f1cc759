package supastore

import (
	"errors"
	"fmt"
	"io"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
	supabase "github.com/supabase-community/supabase-go"
)

// Client talks to one Supabase project.
type Client struct {
	sdk *supabase.Client
}

// New connects to the project at url using an API key (service role for writes).
func New(url, key string) (*Client, error) {
	url = strings.TrimSpace(url)
	key = strings.TrimSpace(key)
	if url == "" || key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	sdk, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase SDK: %w", err)
	}
	return &Client{sdk: sdk}, nil
}

// SelectInto reads every row of table into dest, a pointer to a slice.
func (c *Client) SelectInto(table, columns string, dest any) error {
	if columns == "" {
		columns = "*"
	}
	if _, err := c.sdk.From(table).Select(columns, "", false).ExecuteTo(dest); err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	return nil
}

// Insert writes row into table and decodes the returned representation into dest.
func (c *Client) Insert(table string, row any, dest any) error {
	if _, err := c.sdk.From(table).Insert(row, false, "", "representation", "").ExecuteTo(dest); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// UploadObject stores data at path inside bucket, replacing any existing object.
func (c *Client) UploadObject(bucket, path string, data io.Reader, contentType string) error {
	upsert := true
	opts := storage_go.FileOptions{ContentType: &contentType, Upsert: &upsert}
	if _, err := c.sdk.Storage.UploadFile(bucket, path, data, opts); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	return nil
}
