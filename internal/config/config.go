package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Connection modes accepted by whatsapp.connect_mode.
const (
	ModeQRCode  = "qrcode"
	ModePairing = "pairing"
)

// Paths contains directory and file locations.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	LedgerFile string `toml:"ledger_file"`
	SessionDB  string `toml:"session_db"`
}

// WhatsApp contains the messaging account settings.
type WhatsApp struct {
	// Recipient is the JID that receives the ledger after every new contact.
	Recipient   string `toml:"recipient"`
	PhoneNumber string `toml:"phone_number"`
	// ConnectMode is "qrcode", "pairing", or empty to ask a front end.
	ConnectMode    string `toml:"connect_mode"`
	DeviceName     string `toml:"device_name"`
	ConnectTimeout int    `toml:"connect_timeout"`
}

// Reconnect contains the supervisor retry policy.
type Reconnect struct {
	MaxAttempts   int    `toml:"max_attempts"`
	BackoffUnitMS int    `toml:"backoff_unit_ms"`
	ProbeHost     string `toml:"probe_host"`
}

// Control contains the control front end settings.
type Control struct {
	Listen         string `toml:"listen"`
	PromptTimeout  int    `toml:"prompt_timeout"`
	TerminalPrompt bool   `toml:"terminal_prompt"`
	// APIToken, when set, is required as a bearer token on /api/status.
	APIToken string `toml:"api_token"`
}

// Dispatch contains settings for shipping the ledger to the recipient.
type Dispatch struct {
	Enabled    bool   `toml:"enabled"`
	MinDelayMS int    `toml:"min_delay_ms"`
	MaxDelayMS int    `toml:"max_delay_ms"`
	FileName   string `toml:"file_name"`
	Caption    string `toml:"caption"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Contacts       bool   `toml:"contacts"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for ledgerbot.
//
// Configuration sections by subsystem:
//   - Paths: data, log, ledger and session store locations
//   - WhatsApp: account, recipient and connection mode
//   - Reconnect: supervisor retry policy and DNS probe host
//   - Control: HTTP/WebSocket listener and terminal prompt
//   - Dispatch: ledger delivery to the recipient
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	WhatsApp      WhatsApp      `toml:"whatsapp"`
	Reconnect     Reconnect     `toml:"reconnect"`
	Control       Control       `toml:"control"`
	Dispatch      Dispatch      `toml:"dispatch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ledgerbot/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ledgerbot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for bot operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.LedgerFile),
		filepath.Dir(c.Paths.SessionDB),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "ledgerbot.lock")
}

// BackoffUnit returns the base duration multiplied by 2^attempt between retries.
func (c *Config) BackoffUnit() time.Duration {
	return time.Duration(c.Reconnect.BackoffUnitMS) * time.Millisecond
}

// PromptTimeout returns how long the terminal prompt waits for a mode choice.
func (c *Config) PromptTimeout() time.Duration {
	return time.Duration(c.Control.PromptTimeout) * time.Second
}

// ConnectTimeout returns the session open timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.WhatsApp.ConnectTimeout) * time.Second
}

// DispatchDelayRange returns the bounds of the random delay before the ledger is sent.
func (c *Config) DispatchDelayRange() (time.Duration, time.Duration) {
	return time.Duration(c.Dispatch.MinDelayMS) * time.Millisecond,
		time.Duration(c.Dispatch.MaxDelayMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
