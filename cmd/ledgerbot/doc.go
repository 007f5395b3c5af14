// Package main hosts the ledgerbot CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the bot, inspects and exports the contact
// ledger, checks readiness, unlinks the device, and scaffolds configuration.
// It centralizes configuration resolution and logger setup so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
