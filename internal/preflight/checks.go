package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"go.mau.fi/whatsmeow/types"
	"golang.org/x/sys/unix"

	"ledgerbot/internal/ledger"
)

// Prober resolves a host and reports whether it answered.
type Prober interface {
	Probe(ctx context.Context, host string) bool
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckLedger parses the contact ledger. A missing file passes since the first
// contact creates it.
func CheckLedger(ctx context.Context, path string) Result {
	const name = "Contact ledger"

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
	}
	store, err := ledger.Open(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	contacts, err := store.List(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d contacts)", path, len(contacts))}
}

// CheckSessionStore reports whether linked-device credentials are on disk.
func CheckSessionStore(path string) Result {
	const name = "Session store"

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not linked yet)", path)}
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	case info.IsDir():
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (present)", path)}
}

// CheckRecipient verifies the ledger recipient is a user JID.
func CheckRecipient(recipient string) Result {
	const name = "Recipient"

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return Result{Name: name, Detail: "missing recipient"}
	}
	jid, err := types.ParseJID(recipient)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", recipient, err)}
	}
	if jid.Server != types.DefaultUserServer {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: expected @%s)", recipient, types.DefaultUserServer)}
	}
	return Result{Name: name, Passed: true, Detail: jid.String()}
}

// CheckReachability resolves the WhatsApp host the same way the supervisor does
// before each attempt.
func CheckReachability(ctx context.Context, prober Prober, host string) Result {
	const name = "WhatsApp DNS"

	if prober == nil {
		return Result{Name: name, Detail: "no resolver"}
	}
	if prober.Probe(ctx, host) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s resolves", host)}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s does not resolve", host)}
}
