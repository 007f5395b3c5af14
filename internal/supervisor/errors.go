package supervisor

import "errors"

var (
	// ErrReachability marks a failed DNS probe.
	ErrReachability = errors.New("messaging service unreachable")
	// ErrSessionClosed marks a transient session close or a failed open.
	ErrSessionClosed = errors.New("session closed")
	// ErrLoggedOut is returned when the account revoked this device.
	ErrLoggedOut = errors.New("session logged out")
	// ErrRetriesExhausted is returned when max attempts failed in a row.
	ErrRetriesExhausted = errors.New("connection retries exhausted")
)

// terminalError tags fatal campaign outcomes for error classification.
type terminalError struct {
	kind string
	err  error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }
func (e *terminalError) ErrorKind() string { return e.kind }
