package testsupport

import (
	"context"
	"testing"

	"digestcast/internal/config"
	"digestcast/internal/ledger"
)

// MustOpenLedger opens the ledger configured by cfg and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
