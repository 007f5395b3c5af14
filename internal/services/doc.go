// Package services defines shared utilities consumed by the bot orchestration
// and its integrations.
//
// Key responsibilities:
//   - Context helpers that stamp campaign IDs, contact IDs, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Kind/Fatal which
//     decide whether a failure stops the process or is logged and skipped.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the bot.
package services
