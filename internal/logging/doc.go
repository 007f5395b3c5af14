// Package logging assembles structured slog loggers and formatting helpers used
// across ledgerbot.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and stamps every record with the run identifier so one process
// lifetime can be followed through the log file. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the bot.
package logging
