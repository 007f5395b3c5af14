// Package bot coordinates one ledgerbot process: it resolves the connection
// mode, runs the reconnect supervisor, translates its progress into front end
// events, and records new contacts before shipping the ledger to the
// configured recipient.
//
// The process-wide lock lives here too so the CLI can refuse to touch the
// session store while a bot is running.
package bot
