package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWhatsApp(); err != nil {
		return err
	}
	if err := c.validateReconnect(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWhatsApp() error {
	switch c.WhatsApp.ConnectMode {
	case "", ModeQRCode, ModePairing:
	default:
		return fmt.Errorf("whatsapp.connect_mode must be %q or %q, got %q", ModeQRCode, ModePairing, c.WhatsApp.ConnectMode)
	}
	if c.WhatsApp.ConnectMode == ModePairing && c.WhatsApp.PhoneNumber == "" {
		return errors.New("whatsapp.phone_number must be set when whatsapp.connect_mode is pairing")
	}
	return nil
}

func (c *Config) validateReconnect() error {
	if c.Reconnect.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be at least 1")
	}
	// 2^attempt overflows time.Duration well before 62 attempts.
	if c.Reconnect.MaxAttempts > 30 {
		return errors.New("reconnect.max_attempts must not exceed 30")
	}
	if c.Reconnect.BackoffUnitMS < 1 {
		return errors.New("reconnect.backoff_unit_ms must be at least 1")
	}
	// unit << max_attempts must still fit in a time.Duration.
	limitMS := (math.MaxInt64 >> uint(c.Reconnect.MaxAttempts)) / int64(time.Millisecond)
	if int64(c.Reconnect.BackoffUnitMS) > limitMS {
		return fmt.Errorf("reconnect.backoff_unit_ms must not exceed %d with max_attempts %d, got %d",
			limitMS, c.Reconnect.MaxAttempts, c.Reconnect.BackoffUnitMS)
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if !c.Dispatch.Enabled {
		return nil
	}
	if strings.TrimSpace(c.WhatsApp.Recipient) == "" {
		return errors.New("whatsapp.recipient must be set when dispatch.enabled is true (or set LEDGERBOT_RECIPIENT)")
	}
	if !strings.Contains(c.WhatsApp.Recipient, "@") {
		return fmt.Errorf("whatsapp.recipient %q must be a full JID such as 15551234567@s.whatsapp.net", c.WhatsApp.Recipient)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
