// Package supervisor drives one connection campaign against a session client.
//
// The supervisor is a bounded loop over the states Idle, Probing, Connecting,
// Open and BackoffWait, ending in LoggedOut or Exhausted. Every attempt first
// resolves the service host; failed probes and transient session closes wait
// 2^attempt backoff units before the next attempt. A close caused by the
// account logging the device out wipes the stored credentials and is never
// retried. Reaching Open resets the attempt counter, so each outage gets the
// full retry budget.
//
// All retryable failures stay inside Run; callers only observe them through
// Status callbacks. Run returns nil when its context is cancelled and a typed
// error (ErrLoggedOut or ErrRetriesExhausted) for terminal states.
package supervisor
