package testsupport

import (
	"path/filepath"
	"testing"

	"ledgerbot/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Backoff and dispatch delays are shrunk so tests never sleep for long.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerFile = filepath.Join(base, "data", "contacts.csv")
	cfgVal.Paths.SessionDB = filepath.Join(base, "data", "session.db")
	cfgVal.Control.Listen = "127.0.0.1:0"
	cfgVal.Control.TerminalPrompt = false
	cfgVal.Reconnect.BackoffUnitMS = 1
	cfgVal.Dispatch.MinDelayMS = 0
	cfgVal.Dispatch.MaxDelayMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithConnectMode presets the connection mode.
func WithConnectMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.WhatsApp.ConnectMode = mode
	}
}

// WithRecipient overrides the ledger recipient JID.
func WithRecipient(jid string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.WhatsApp.Recipient = jid
	}
}

// WithNtfyTopic points notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithMaxAttempts overrides the reconnect attempt ceiling.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reconnect.MaxAttempts = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
