package testsupport

import (
	"testing"

	"fileconv/internal/config"
	"fileconv/internal/history"
	"fileconv/internal/logging"
)

// MustOpenHistory opens the job ledger under cfg's state directory and closes
// it when the test finishes.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryPath(), logging.NewNop())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
