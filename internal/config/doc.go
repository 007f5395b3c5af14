// Package config loads, normalizes, and validates ledgerbot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// LEDGERBOT_CONNECT_MODE and PORT. The Config type centralizes every knob the
// bot and CLI need so the data directory, the ledger file, the session store
// and the control listener are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
