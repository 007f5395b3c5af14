// Package whatsapp implements session.Client on top of whatsmeow.
//
// Device credentials live in a SQLite database (modernc.org/sqlite) managed by
// whatsmeow's sqlstore. whatsmeow's own auto-reconnect is disabled: each
// Session is one connection, and the supervisor decides when to open the next
// one. whatsmeow log output is routed into slog.
package whatsapp
