// Package preflight provides readiness checks for the filesystem paths and
// network endpoints the bot depends on.
//
// The CLI "ledgerbot doctor" command runs RunAll and renders the results; the
// run command uses the directory checks to fail fast before linking a device.
package preflight
