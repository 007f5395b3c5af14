package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ledgerbot/internal/config"
)

type stubProber bool

func (s stubProber) Probe(context.Context, string) bool { return bool(s) }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckDirectoryAccess("test", f).Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLedger(t *testing.T) {
	dir := t.TempDir()
	missing := CheckLedger(context.Background(), filepath.Join(dir, "contacts.csv"))
	if !missing.Passed || !strings.Contains(missing.Detail, "not created yet") {
		t.Fatalf("expected missing ledger to pass, got %+v", missing)
	}

	good := filepath.Join(dir, "good.csv")
	if err := os.WriteFile(good, []byte("contact_id,nom,date_ajout\nA@x,Alice,2026-03-14T09:26:53.589Z\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckLedger(context.Background(), good); !result.Passed || !strings.Contains(result.Detail, "1 contacts") {
		t.Fatalf("unexpected result %+v", result)
	}

	bad := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(bad, []byte("id,name\nA@x,Alice\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckLedger(context.Background(), bad).Passed {
		t.Fatal("expected malformed ledger to fail")
	}
}

func TestCheckLedgerDistinguishesMissingFromEmpty(t *testing.T) {
	dir := t.TempDir()
	missingPath := filepath.Join(dir, "data", "contacts.csv")
	missing := CheckLedger(context.Background(), missingPath)
	if !missing.Passed || strings.Contains(missing.Detail, "0 contacts") {
		t.Fatalf("missing ledger reported as %+v", missing)
	}
	if _, err := os.Stat(missingPath); !os.IsNotExist(err) {
		t.Fatalf("check must not create the ledger, stat err=%v", err)
	}

	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, []byte("contact_id,nom,date_ajout\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckLedger(context.Background(), empty)
	if !result.Passed || !strings.Contains(result.Detail, "(0 contacts)") {
		t.Fatalf("expected empty ledger to report 0 contacts, got %+v", result)
	}
}

func TestCheckSessionStore(t *testing.T) {
	dir := t.TempDir()
	if result := CheckSessionStore(filepath.Join(dir, "session.db")); !result.Passed {
		t.Fatalf("expected missing store to pass, got %+v", result)
	}
	if CheckSessionStore(dir).Passed {
		t.Fatal("expected directory to fail")
	}
}

func TestCheckRecipient(t *testing.T) {
	tests := []struct {
		in   string
		pass bool
	}{
		{in: "23791008288@s.whatsapp.net", pass: true},
		{in: "", pass: false},
		{in: "120363000000000000@g.us", pass: false},
	}
	for _, tc := range tests {
		if got := CheckRecipient(tc.in); got.Passed != tc.pass {
			t.Fatalf("CheckRecipient(%q) = %+v, want pass=%v", tc.in, got, tc.pass)
		}
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, stubProber(true)); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsUnreachableHost(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.LedgerFile = filepath.Join(cfg.Paths.DataDir, "contacts.csv")
	cfg.Paths.SessionDB = filepath.Join(cfg.Paths.DataDir, "session.db")

	results := RunAll(context.Background(), &cfg, stubProber(false))
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "WhatsApp DNS" {
		t.Fatalf("expected only the DNS check to fail, got %+v", failed)
	}

	cfg.Dispatch.Enabled = false
	if got := len(RunAll(context.Background(), &cfg, stubProber(true))); got != 5 {
		t.Fatalf("expected recipient check to be skipped, got %d results", got)
	}
}
