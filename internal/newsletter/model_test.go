package newsletter_test

import (
	"testing"
	"time"

	"digestcast/internal/newsletter"
)

func TestWindowValidateAndContains(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	w := newsletter.Window{Start: start, End: start.Add(24 * time.Hour)}
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !w.Contains(start) {
		t.Fatal("start bound is inclusive")
	}
	if w.Contains(w.End) {
		t.Fatal("end bound is exclusive")
	}
	if err := (newsletter.Window{Start: w.End, End: w.Start}).Validate(); err == nil {
		t.Fatal("expected error for inverted window")
	}
	if err := (newsletter.Window{End: w.End}).Validate(); err == nil {
		t.Fatal("expected error for missing start")
	}
}
