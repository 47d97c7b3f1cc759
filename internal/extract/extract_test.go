package extract_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"digestcast/internal/extract"
)

func message(headers, body string) []byte {
	return []byte("From: news@daily.example\r\nSubject: Test\r\nDate: Fri, 01 Mar 2024 09:00:00 +0000\r\nMIME-Version: 1.0\r\n" + headers + "\r\n" + body)
}

const newsletterHTML = `<html><head><title>Ignored</title><style>p { color: red }</style></head><body>
<div style="display: none">preheader text</div>
<h1>Morning Brief</h1>
<p>Markets rose <a href="https://x.example/a">sharply <b>today</b></a>.</p>
<p>Read more at <a href="https://x.example">https://x.example</a></p>
<img src="https://t.example/p.gif" width="1" height="1">
<table><tr><td>Left cell</td><td>Right cell</td></tr></table>
<p>You are receiving this because you subscribed. <a href="https://u.example">Unsubscribe</a></p>
</body></html>`

func TestExtractHTML(t *testing.T) {
	raw := message("Content-Type: text/html; charset=utf-8\r\n", newsletterHTML)
	got, err := extract.New(extract.Options{}).Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "Morning Brief\n\nMarkets rose sharply today.\n\nRead more at\n\nLeft cell\n\nRight cell"
	if got != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", got, want)
	}
}

func TestExtractPrefersHTMLPart(t *testing.T) {
	body := "--b1\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nPlain version\r\n" +
		"--b1\r\nContent-Type: text/html; charset=utf-8\r\n\r\n<p>HTML version</p>\r\n" +
		"--b1--\r\n"
	raw := message("Content-Type: multipart/alternative; boundary=\"b1\"\r\n", body)
	got, err := extract.New(extract.Options{}).Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "HTML version" {
		t.Fatalf("expected html part, got %q", got)
	}
}

func TestExtractPlainText(t *testing.T) {
	body := "Hello [world](https://w.example) and friends <https://f.example>.\r\n" +
		"Second line https://bare.example/x here.\r\n\r\n--\r\nUnsubscribe: https://u.example\r\n"
	raw := message("Content-Type: text/plain; charset=utf-8\r\n", body)
	got, err := extract.New(extract.Options{}).Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Hello world and friends. Second line here." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractDecodesCharsetAndNormalizes(t *testing.T) {
	raw := message("Content-Type: text/plain; charset=iso-8859-1\r\nContent-Transfer-Encoding: quoted-printable\r\n",
		"Caf=E9   au   lait\r\n")
	got, err := extract.New(extract.Options{}).Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Café au lait" {
		t.Fatalf("unexpected text %q", got)
	}

	raw = message("Content-Type: text/plain; charset=utf-8\r\n", "\ufb01ne \uff21\u200bB\r\n")
	got, err = extract.New(extract.Options{}).Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "fine AB" {
		t.Fatalf("expected NFKC output, got %q", got)
	}
}

func TestExtractEmpty(t *testing.T) {
	raw := message("Content-Type: text/html; charset=utf-8\r\n",
		`<html><body><img src="x.gif"><p><a href="https://u.example">Unsubscribe</a></p></body></html>`)
	if _, err := extract.New(extract.Options{}).Extract(raw); !errors.Is(err, extract.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	raw := message("Content-Type: text/html; charset=utf-8\r\n", newsletterHTML)
	for _, opts := range []extract.Options{{}, {Readability: true}} {
		first, err := extract.New(opts).Extract(raw)
		if err != nil {
			t.Fatalf("Extract(%+v): %v", opts, err)
		}
		for i := 0; i < 3; i++ {
			again, err := extract.New(opts).Extract(raw)
			if err != nil || again != first {
				t.Fatalf("output changed between runs: %q vs %q (%v)", first, again, err)
			}
		}
	}
}

func TestIntro(t *testing.T) {
	received := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	got := extract.Intro("Daily News", received)
	if got != "Newsletter from: Daily News. Received on: March 1, 2024." {
		t.Fatalf("unexpected intro %q", got)
	}
	if !strings.HasPrefix(extract.WithIntro("Body", "Daily News", received), got+"\n\n") {
		t.Fatal("WithIntro should place the intro in its own paragraph")
	}
}
