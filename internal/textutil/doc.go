// Package textutil provides small text cleanup helpers shared by the ledger
// and the CLI.
//
// The primary use cases are:
//   - Normalizing display names reported by the messaging service before they
//     are written to the ledger
//   - Sanitizing filenames for exported ledgers
package textutil
