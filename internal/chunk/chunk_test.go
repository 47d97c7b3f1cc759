package chunk_test

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"digestcast/internal/chunk"
)

func joinTexts(t *testing.T, text string, max int) (string, int) {
	t.Helper()
	chunks, err := chunk.Split("msg", text, max)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if c.MessageID != "msg" {
			t.Fatalf("unexpected message id %q", c.MessageID)
		}
		if c.Text == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if n := utf8.RuneCountInString(c.Text); n > max {
			t.Fatalf("chunk %d has %d runes, max %d", i, n, max)
		}
		parts[i] = c.Text
	}
	return strings.Join(parts, " "), len(chunks)
}

func TestShortTextIsSingleChunk(t *testing.T) {
	text := "Newsletter from: Daily News.\n\nMarkets   rose today."
	joined, n := joinTexts(t, text, 250)
	if n != 1 {
		t.Fatalf("expected one chunk, got %d", n)
	}
	if joined != chunk.Collapse(text) {
		t.Fatalf("chunk %q does not equal collapsed input", joined)
	}
}

func TestJoinReproducesCollapsedText(t *testing.T) {
	texts := []string{
		"First sentence. Second sentence is a bit longer! Is this the third? Yes.\n\nA new paragraph starts here and keeps going for a while without stopping at all",
		"Dr. Smith met Mr. Jones at 3 p.m. and they discussed e.g. the weather. Then they left.",
		strings.Repeat("word ", 200),
		"Ünïcödé sentences work too. Ça va? Très bien… Merci.",
	}
	for _, max := range []int{20, 45, 100} {
		for _, text := range texts {
			joined, _ := joinTexts(t, text, max)
			if joined != chunk.Collapse(text) {
				t.Fatalf("max %d: join mismatch\n got %q\nwant %q", max, joined, chunk.Collapse(text))
			}
		}
	}
}

func TestSentenceBoundariesPreferred(t *testing.T) {
	text := "Alpha beta gamma. Delta epsilon zeta. Eta theta iota."
	chunks, err := chunk.Split("m", text, 40)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []string{"Alpha beta gamma. Delta epsilon zeta.", "Eta theta iota."}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks: %+v", len(chunks), chunks)
	}
	for i := range want {
		if chunks[i].Text != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, chunks[i].Text, want[i])
		}
	}
}

func TestTwoAndAHalfTimesMaxYieldsThreeChunks(t *testing.T) {
	const max = 100
	// Five 49-rune sentences: two fit per chunk.
	sentence := strings.Repeat("a", 47) + "."
	sentence = "S" + sentence
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 5))
	if n := utf8.RuneCountInString(text); n < 2*max || n > 3*max {
		t.Fatalf("fixture length %d not ~2.5x", n)
	}
	chunks, err := chunk.Split("m", text, max)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("unexpected index %d at %d", c.Index, i)
		}
	}
}

func TestOverlongWordIsHardCut(t *testing.T) {
	word := strings.Repeat("x", 25)
	chunks, err := chunk.Split("m", "tiny "+word+" end", 10)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	var got []string
	for _, c := range chunks {
		got = append(got, c.Text)
	}
	want := "tiny|xxxxxxxxxx|xxxxxxxxxx|xxxxx end"
	if strings.Join(got, "|") != want {
		t.Fatalf("got %q, want %q", strings.Join(got, "|"), want)
	}
}

func TestSplitEdgeCases(t *testing.T) {
	if _, err := chunk.Split("m", "text", 0); !errors.Is(err, chunk.ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	chunks, err := chunk.Split("m", "   \n\n  ", 10)
	if err != nil || len(chunks) != 0 {
		t.Fatalf("expected no chunks for blank text, got %v %v", chunks, err)
	}
}
