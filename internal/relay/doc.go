// Package relay connects the bot to at most one human-facing front end.
//
// Outbound events (QR payloads, pairing codes, connection progress, fatal
// errors) are offered to the attached front end without blocking: each
// attachment owns a small queue drained by its own goroutine, and an event that
// does not fit is dropped. Nothing is replayed to a front end that attaches
// later. When no front end is attached, events go to the optional fallback
// (the terminal printer).
//
// Attaching a second front end evicts and closes the first. The relay also
// resolves the run's connection mode, either from a preset or from a race
// between a remote selectMode message and the terminal prompt; the losing
// side is cancelled through its context.
package relay
