// Package daemonrun hosts the long-running "ledgerbot run" process: it takes
// the instance lock, sets up the per-run log file, starts the control server,
// and hands over to the bot orchestrator.
package daemonrun
