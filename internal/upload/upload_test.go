package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"digestcast/internal/newsletter"
	"digestcast/internal/retry"
	"digestcast/internal/services"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testBook(t *testing.T) newsletter.Audiobook {
	t.Helper()
	path := filepath.Join(t.TempDir(), "digest.mp3")
	if err := os.WriteFile(path, []byte("ID3 fake mp3"), 0o644); err != nil {
		t.Fatal(err)
	}
	return newsletter.Audiobook{
		Title:    "Daily Digest for 2024-03-01",
		Path:     path,
		Duration: 125*time.Second + 900*time.Millisecond,
		Chapters: []newsletter.Chapter{
			{Title: "Tech Weekly", Start: 0},
			{Title: "Daily News", Start: 61*time.Second + 500*time.Millisecond},
		},
		MessageIDs: []string{"a", "b"},
	}
}

func TestChaptersJSONKeepsOrder(t *testing.T) {
	got, err := ChaptersJSON([]newsletter.Chapter{
		{Title: "Zeta", Start: 0},
		{Title: `Alpha "A"`, Start: 90 * time.Second},
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"Zeta":0,"Alpha \"A\"":90}`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
	if empty, _ := ChaptersJSON(nil); empty != "{}" {
		t.Fatalf("expected empty object, got %s", empty)
	}
}

func TestManualAudiobook(t *testing.T) {
	book := ManualAudiobook("/music/show.mp3", "", 42*time.Second)
	if book.Title != "Manual Upload: show.mp3" {
		t.Fatalf("unexpected title %q", book.Title)
	}
	meta, err := MetadataFor(book)
	if err != nil {
		t.Fatal(err)
	}
	if meta.ChaptersJSON != `{"Part Start":0}` || meta.DurationSeconds != 42 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestWebAPIUploadSendsMultipart(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/api/v1/audiobooks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer token")
		}
		file, header, err := r.FormFile("audio_file")
		if err != nil {
			t.Errorf("audio_file: %v", err)
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "ID3 fake mp3" || header.Filename != "digest.mp3" || header.Header.Get("Content-Type") != "audio/mpeg" {
			t.Errorf("unexpected file part %q %q %q", data, header.Filename, header.Header.Get("Content-Type"))
		}
		var meta Metadata
		if err := json.Unmarshal([]byte(r.FormValue("metadata")), &meta); err != nil {
			t.Errorf("metadata: %v", err)
		}
		if meta.Title != "Daily Digest for 2024-03-01" || meta.DurationSeconds != 125 {
			t.Errorf("unexpected metadata %+v", meta)
		}
		if meta.ChaptersJSON != `{"Tech Weekly":0,"Daily News":61}` {
			t.Errorf("unexpected chapters %s", meta.ChaptersJSON)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 17, "url": "/listen/17"}`))
	}))
	defer server.Close()

	api, err := NewWebAPI(WebAPIConfig{
		BaseURL: server.URL + "/",
		APIKey:  "k",
		Policy:  retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, Sleep: noSleep},
	}, nil, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	receipt, err := api.Upload(context.Background(), testBook(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if receipt.ID != "17" || receipt.URL != "/listen/17" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if attempts.Load() != 2 {
		t.Fatalf("expected a retry after 503, got %d attempts", attempts.Load())
	}
}

func TestWebAPIUploadFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		want     error
		attempts int32
		severity services.Severity
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: services.ErrAuthentication, attempts: 1, severity: services.SeverityFatal},
		{name: "rejected", status: http.StatusUnprocessableEntity, want: services.ErrRejected, attempts: 1, severity: services.SeverityRun},
		{name: "server error", status: http.StatusBadGateway, want: services.ErrTransient, attempts: 3, severity: services.SeverityMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				http.Error(w, "invalid chapters", tc.status)
			}))
			defer server.Close()

			api, err := NewWebAPI(WebAPIConfig{
				BaseURL: server.URL,
				Policy:  retry.Policy{Attempts: 3, Sleep: noSleep},
			}, nil, WithHTTPClient(server.Client()))
			if err != nil {
				t.Fatal(err)
			}
			_, err = api.Upload(context.Background(), testBook(t))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tc.status {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if got := attempts.Load(); got != tc.attempts {
				t.Fatalf("expected %d attempts, got %d", tc.attempts, got)
			}
			if got := services.Classify(err); got != tc.severity {
				t.Fatalf("expected severity %s, got %s", tc.severity, got)
			}
		})
	}
}

func TestNewWebAPIRequiresURL(t *testing.T) {
	if _, err := NewWebAPI(WebAPIConfig{}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type fakeStore struct {
	uploads  []string
	rows     []audiobookRow
	failures int
}

func (f *fakeStore) UploadObject(bucket, path string, data io.Reader, contentType string) error {
	body, _ := io.ReadAll(data)
	f.uploads = append(f.uploads, bucket+"/"+path+":"+contentType+":"+string(body))
	return nil
}

func (f *fakeStore) Insert(_ string, row any, dest any) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset")
	}
	f.rows = append(f.rows, row.(audiobookRow))
	return json.Unmarshal([]byte(`[{"id":"9f1c"}]`), dest)
}

func TestSupabaseUploadRetriesInsert(t *testing.T) {
	store := &fakeStore{failures: 1}
	uploader := NewSupabase(store, "audiobooks", "audiobooks", retry.Policy{Attempts: 2, Sleep: noSleep}, nil)
	uploader.now = func() time.Time { return time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC) }

	receipt, err := uploader.Upload(context.Background(), testBook(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if receipt.ID != "9f1c" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if len(store.uploads) != 2 || store.uploads[0] != store.uploads[1] {
		t.Fatalf("expected the same object uploaded twice, got %v", store.uploads)
	}
	if !strings.HasPrefix(store.uploads[0], "audiobooks/2024-03-01/digest.mp3:audio/mpeg:") {
		t.Fatalf("unexpected object %s", store.uploads[0])
	}
	if len(store.rows) != 1 || store.rows[0].AudioPath != "2024-03-01/digest.mp3" || store.rows[0].DurationSeconds != 125 {
		t.Fatalf("unexpected rows %+v", store.rows)
	}
}

func TestArchive(t *testing.T) {
	book := testBook(t)
	dir := filepath.Join(t.TempDir(), "archive")

	first, err := Archive(book.Path, dir, book.Title)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(first) != "Daily Digest for 2024-03-01.mp3" {
		t.Fatalf("unexpected archive name %s", first)
	}
	second, err := Archive(book.Path, dir, book.Title)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(second) != "Daily Digest for 2024-03-01 (2).mp3" {
		t.Fatalf("expected suffixed archive, got %s", second)
	}
	if dest, err := Archive(book.Path, "", book.Title); err != nil || dest != "" {
		t.Fatalf("expected disabled archive, got %q %v", dest, err)
	}
}
