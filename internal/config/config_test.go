package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"ledgerbot/internal/config"
)

func clearModeEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LEDGERBOT_CONNECT_MODE", "AUTH_MODE", "PORT", "LEDGERBOT_RECIPIENT"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearModeEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "ledgerbot")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LedgerFile != filepath.Join(wantData, "contacts.csv") {
		t.Fatalf("unexpected ledger file: %q", cfg.Paths.LedgerFile)
	}
	if cfg.Paths.SessionDB != filepath.Join(wantData, "session.db") {
		t.Fatalf("unexpected session db: %q", cfg.Paths.SessionDB)
	}
	if cfg.Reconnect.MaxAttempts != 10 {
		t.Fatalf("expected 10 max attempts, got %d", cfg.Reconnect.MaxAttempts)
	}
	if cfg.Reconnect.ProbeHost != "web.whatsapp.com" {
		t.Fatalf("unexpected probe host %q", cfg.Reconnect.ProbeHost)
	}
	if cfg.WhatsApp.ConnectMode != "" {
		t.Fatalf("expected connect mode to be unset, got %q", cfg.WhatsApp.ConnectMode)
	}
	if cfg.Control.Listen != ":3000" {
		t.Fatalf("unexpected listen address %q", cfg.Control.Listen)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearModeEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "ledgerbot.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		WhatsApp struct {
			ConnectMode string `toml:"connect_mode"`
			PhoneNumber string `toml:"phone_number"`
		} `toml:"whatsapp"`
		Reconnect struct {
			MaxAttempts int `toml:"max_attempts"`
		} `toml:"reconnect"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.WhatsApp.ConnectMode = "Pairing"
	custom.WhatsApp.PhoneNumber = "+237 677-519-251"
	custom.Reconnect.MaxAttempts = 4
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.WhatsApp.ConnectMode != config.ModePairing {
		t.Fatalf("expected pairing mode, got %q", cfg.WhatsApp.ConnectMode)
	}
	if cfg.WhatsApp.PhoneNumber != "237677519251" {
		t.Fatalf("expected digits-only phone number, got %q", cfg.WhatsApp.PhoneNumber)
	}
	if cfg.Reconnect.MaxAttempts != 4 {
		t.Fatalf("expected 4 max attempts, got %d", cfg.Reconnect.MaxAttempts)
	}
	if cfg.Paths.LedgerFile != filepath.Join(tempDir, "data", "contacts.csv") {
		t.Fatalf("ledger file should follow data dir, got %q", cfg.Paths.LedgerFile)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearModeEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AUTH_MODE", "qrcode")
	t.Setenv("PORT", "8080")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.WhatsApp.ConnectMode != config.ModeQRCode {
		t.Fatalf("expected AUTH_MODE to select qrcode, got %q", cfg.WhatsApp.ConnectMode)
	}
	if cfg.Control.Listen != ":8080" {
		t.Fatalf("expected PORT override, got %q", cfg.Control.Listen)
	}

	t.Setenv("LEDGERBOT_CONNECT_MODE", "qrcode")
	t.Setenv("AUTH_MODE", "pairing")
	cfg, _, _, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.WhatsApp.ConnectMode != config.ModeQRCode {
		t.Fatalf("LEDGERBOT_CONNECT_MODE should win over AUTH_MODE, got %q", cfg.WhatsApp.ConnectMode)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "unknown mode",
			mutate: func(c *config.Config) { c.WhatsApp.ConnectMode = "sms" },
			want:   "whatsapp.connect_mode",
		},
		{
			name:   "pairing without phone",
			mutate: func(c *config.Config) { c.WhatsApp.ConnectMode = config.ModePairing },
			want:   "whatsapp.phone_number",
		},
		{
			name:   "recipient without server",
			mutate: func(c *config.Config) { c.WhatsApp.Recipient = "23791008288" },
			want:   "full JID",
		},
		{
			name:   "too many attempts",
			mutate: func(c *config.Config) { c.Reconnect.MaxAttempts = 64 },
			want:   "reconnect.max_attempts",
		},
		{
			name:   "backoff overflows",
			mutate: func(c *config.Config) { c.Reconnect.BackoffUnitMS = 10_000_000; c.Reconnect.MaxAttempts = 30 },
			want:   "reconnect.backoff_unit_ms",
		},
		{
			name:   "bad log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error to mention %q, got %v", tc.want, err)
			}
		})
	}
}

func TestBackoffUnitBoundKeepsBackoffIncreasing(t *testing.T) {
	cfg := config.Default()
	cfg.Reconnect.MaxAttempts = 30
	cfg.Reconnect.BackoffUnitMS = 8_000
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected 8s unit with 30 attempts to validate, got %v", err)
	}
	prev := time.Duration(0)
	for attempt := 1; attempt <= cfg.Reconnect.MaxAttempts; attempt++ {
		wait := cfg.BackoffUnit() << uint(attempt)
		if wait <= prev {
			t.Fatalf("attempt %d: backoff %s not greater than %s", attempt, wait, prev)
		}
		prev = wait
	}

	cfg.Reconnect.BackoffUnitMS = 9_000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected 9s unit with 30 attempts to overflow")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	clearModeEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Dispatch.Caption == "" {
		t.Fatal("expected sample caption")
	}
}

func TestDispatchFileNameIsSanitized(t *testing.T) {
	clearModeEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "ledgerbot.toml")
	if err := os.WriteFile(path, []byte("[dispatch]\nfile_name = \" contacts/2026?.csv \"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dispatch.FileName != "contacts-2026.csv" {
		t.Fatalf("unexpected file name %q", cfg.Dispatch.FileName)
	}
}
