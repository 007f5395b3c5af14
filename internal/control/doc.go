// Package control hosts the human-facing front ends of the bot.
//
// The HTTP server serves the embedded control page on "/", upgrades "/ws" to a
// WebSocket front end, reports runtime status on "/api/status" and answers
// every other path with a plain keep-alive response so hosting platforms see a
// healthy process. The terminal front end prints relay events to stdout and
// implements the timed connection-mode prompt.
package control
