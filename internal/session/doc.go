// Package session defines the contract between ledgerbot and the messaging
// client that owns the protocol connection.
//
// A Client opens Sessions in a given connection mode; each Session reports its
// lifecycle and inbound messages through a single event channel that is closed
// when the session ends. The whatsapp package implements these interfaces on
// top of whatsmeow; tests use in-memory fakes.
package session
