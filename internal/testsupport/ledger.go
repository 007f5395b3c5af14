package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"ledgerbot/internal/config"
	"ledgerbot/internal/ledger"
)

// MustOpenLedger opens the ledger configured in cfg.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg.Paths.LedgerFile)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	return store
}

// WriteLedger replaces the configured ledger file with content.
func WriteLedger(t testing.TB, cfg *config.Config, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.LedgerFile), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", cfg.Paths.LedgerFile, err)
	}
	if err := os.WriteFile(cfg.Paths.LedgerFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", cfg.Paths.LedgerFile, err)
	}
}
