package mailbox_test

import (
	"testing"
	"time"

	"digestcast/internal/mailbox"
)

func TestIMAPSearchCriteriaWidensToWholeDays(t *testing.T) {
	criteria := mailbox.SearchCriteria("  news@daily.example ", testWindow)
	if len(criteria.Header) != 1 || criteria.Header[0].Key != "From" || criteria.Header[0].Value != "news@daily.example" {
		t.Fatalf("unexpected header criteria: %+v", criteria.Header)
	}
	if want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC); !criteria.Since.Equal(want) {
		t.Fatalf("since = %s, want %s", criteria.Since, want)
	}
	if want := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC); !criteria.Before.Equal(want) {
		t.Fatalf("before = %s, want %s", criteria.Before, want)
	}
}
