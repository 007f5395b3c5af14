package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"ledgerbot/internal/textutil"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWhatsApp()
	c.normalizeReconnect()
	c.normalizeControl()
	c.normalizeDispatch()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerFile) == "" {
		c.Paths.LedgerFile = filepath.Join(c.Paths.DataDir, defaultLedgerFileName)
	}
	if c.Paths.LedgerFile, err = expandPath(c.Paths.LedgerFile); err != nil {
		return fmt.Errorf("paths.ledger_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.SessionDB) == "" {
		c.Paths.SessionDB = filepath.Join(c.Paths.DataDir, defaultSessionDBName)
	}
	if c.Paths.SessionDB, err = expandPath(c.Paths.SessionDB); err != nil {
		return fmt.Errorf("paths.session_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeWhatsApp() {
	if value, ok := os.LookupEnv("LEDGERBOT_RECIPIENT"); ok && strings.TrimSpace(value) != "" {
		c.WhatsApp.Recipient = value
	}
	c.WhatsApp.Recipient = strings.TrimSpace(c.WhatsApp.Recipient)

	if value, ok := os.LookupEnv("LEDGERBOT_CONNECT_MODE"); ok && strings.TrimSpace(value) != "" {
		c.WhatsApp.ConnectMode = value
	} else if value, ok := os.LookupEnv("AUTH_MODE"); ok && strings.TrimSpace(value) != "" {
		c.WhatsApp.ConnectMode = value
	}
	c.WhatsApp.ConnectMode = strings.ToLower(strings.TrimSpace(c.WhatsApp.ConnectMode))

	// Pairing needs digits only: "+237 677-519-251" becomes "237677519251".
	c.WhatsApp.PhoneNumber = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, c.WhatsApp.PhoneNumber)

	c.WhatsApp.DeviceName = strings.TrimSpace(c.WhatsApp.DeviceName)
	if c.WhatsApp.DeviceName == "" {
		c.WhatsApp.DeviceName = defaultDeviceName
	}
	if c.WhatsApp.ConnectTimeout <= 0 {
		c.WhatsApp.ConnectTimeout = defaultConnectTimeout
	}
}

func (c *Config) normalizeReconnect() {
	if c.Reconnect.MaxAttempts <= 0 {
		c.Reconnect.MaxAttempts = defaultMaxAttempts
	}
	if c.Reconnect.BackoffUnitMS <= 0 {
		c.Reconnect.BackoffUnitMS = defaultBackoffUnitMS
	}
	c.Reconnect.ProbeHost = strings.TrimSpace(c.Reconnect.ProbeHost)
	if c.Reconnect.ProbeHost == "" {
		c.Reconnect.ProbeHost = defaultProbeHost
	}
}

func (c *Config) normalizeControl() {
	c.Control.Listen = strings.TrimSpace(c.Control.Listen)
	if port, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(port) != "" {
		host := ""
		if c.Control.Listen != "" {
			if h, _, err := net.SplitHostPort(c.Control.Listen); err == nil {
				host = h
			}
		}
		c.Control.Listen = net.JoinHostPort(host, strings.TrimSpace(port))
	}
	if c.Control.PromptTimeout <= 0 {
		c.Control.PromptTimeout = defaultPromptTimeout
	}
	c.Control.APIToken = strings.TrimSpace(c.Control.APIToken)
}

func (c *Config) normalizeDispatch() {
	if c.Dispatch.MinDelayMS < 0 {
		c.Dispatch.MinDelayMS = 0
	}
	if c.Dispatch.MaxDelayMS < c.Dispatch.MinDelayMS {
		c.Dispatch.MaxDelayMS = c.Dispatch.MinDelayMS
	}
	c.Dispatch.FileName = textutil.SanitizeFileName(c.Dispatch.FileName)
	if c.Dispatch.FileName == "" {
		c.Dispatch.FileName = defaultDispatchFileName
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
