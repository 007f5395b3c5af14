package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledgerbot/internal/logging"
	"ledgerbot/internal/session"
)

// State names one supervisor state.
type State string

const (
	StateIdle        State = "idle"
	StateProbing     State = "probing"
	StateConnecting  State = "connecting"
	StateOpen        State = "open"
	StateBackoffWait State = "backoff_wait"
	StateLoggedOut   State = "logged_out"
	StateExhausted   State = "exhausted"
)

const (
	DefaultMaxAttempts = 10
	DefaultUnit        = time.Second
)

// Status is a best-effort progress report. Artifact and Payload are set when
// the session produced a QR payload or pairing code; Delay is set for
// BackoffWait; Err carries the failure that caused a backoff or terminal state.
type Status struct {
	State       State
	Attempt     int
	MaxAttempts int
	Mode        session.Mode
	Delay       time.Duration
	Artifact    session.ArtifactKind
	Payload     string
	Err         error
}

// Prober gates each attempt.
type Prober interface {
	Probe(ctx context.Context, host string) bool
}

// MessageHandler receives inbound messages together with the session they
// arrived on. It runs on its own goroutine.
type MessageHandler func(ctx context.Context, sess session.Session, ev session.Event)

// Options configures a Supervisor.
type Options struct {
	Client      session.Client
	Prober      Prober
	Host        string
	Mode        session.Mode
	MaxAttempts int
	Unit        time.Duration
	// Sleep waits between attempts; defaults to a context-aware timer.
	Sleep     func(ctx context.Context, d time.Duration) error
	OnStatus  func(Status)
	OnMessage MessageHandler
	Logger    *slog.Logger
}

// Supervisor runs one connection campaign.
type Supervisor struct {
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	state State

	handlers sync.WaitGroup
}

// Backoff returns the wait after a failed attempt: 2^attempt units.
func Backoff(unit time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return unit << uint(attempt)
}

// New validates options and returns an idle supervisor.
func New(opts Options) (*Supervisor, error) {
	if opts.Client == nil {
		return nil, errors.New("supervisor requires a session client")
	}
	if opts.Prober == nil {
		return nil, errors.New("supervisor requires a reachability prober")
	}
	if opts.Mode == "" {
		return nil, errors.New("supervisor requires a resolved connection mode")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Unit <= 0 {
		opts.Unit = DefaultUnit
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Supervisor{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "supervisor"),
		state:  StateIdle,
	}, nil
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the campaign until ctx is cancelled or a terminal state is reached.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.handlers.Wait()

	attempt := 1
	for {
		if ctx.Err() != nil {
			return nil
		}

		s.transition(Status{State: StateProbing, Attempt: attempt})
		var cause error
		if !s.opts.Prober.Probe(ctx, s.opts.Host) {
			if ctx.Err() != nil {
				return nil
			}
			cause = fmt.Errorf("%w: %s", ErrReachability, s.opts.Host)
		} else {
			s.transition(Status{State: StateConnecting, Attempt: attempt})
			closed, err := s.connect(ctx, &attempt)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				cause = fmt.Errorf("%w: open: %w", ErrSessionClosed, err)
			} else if closed.LoggedOut {
				return s.loggedOut(ctx, attempt, closed.Reason)
			} else {
				cause = fmt.Errorf("%w: %s", ErrSessionClosed, reasonOrDefault(closed.Reason))
			}
		}

		if attempt >= s.opts.MaxAttempts {
			err := &terminalError{
				kind: "exhausted",
				err:  fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, cause),
			}
			s.transition(Status{State: StateExhausted, Attempt: attempt, Err: err})
			logging.ErrorWithContext(s.logger, "connection retries exhausted", "retries_exhausted",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Int(logging.FieldMaxAttempts, s.opts.MaxAttempts),
				logging.Error(cause),
				logging.String(logging.FieldErrorHint, "check network access to the messaging service, then restart"),
			)
			return err
		}

		delay := Backoff(s.opts.Unit, attempt)
		s.transition(Status{State: StateBackoffWait, Attempt: attempt, Delay: delay, Err: cause})
		logging.WarnWithContext(s.logger, "connection attempt failed; backing off", "attempt_failed",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int(logging.FieldMaxAttempts, s.opts.MaxAttempts),
			logging.Duration("delay", delay),
			logging.Error(cause),
			logging.String(logging.FieldImpact, "bot is offline until the next attempt succeeds"),
		)
		if err := s.opts.Sleep(ctx, delay); err != nil {
			return nil
		}
		attempt++
	}
}

// connect opens one session and consumes its events until it closes. Reaching
// Open resets *attempt to 1.
func (s *Supervisor) connect(ctx context.Context, attempt *int) (session.Event, error) {
	sess, err := s.opts.Client.Open(ctx, s.opts.Mode)
	if err != nil {
		return session.Event{}, err
	}
	defer sess.Close()

	events := sess.Events()
	for {
		select {
		case <-ctx.Done():
			return session.Event{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return session.Event{Kind: session.EventClosed, Reason: "event stream ended"}, nil
			}
			switch ev.Kind {
			case session.EventArtifactReady:
				s.emit(Status{
					State:    s.State(),
					Attempt:  *attempt,
					Artifact: ev.Artifact,
					Payload:  ev.Payload,
				})
			case session.EventOpened:
				*attempt = 1
				s.transition(Status{State: StateOpen, Attempt: *attempt})
				s.logger.Info("session open",
					logging.String(logging.FieldMode, s.opts.Mode.String()),
					logging.String(logging.FieldEventType, "session_open"),
				)
			case session.EventMessage:
				if s.opts.OnMessage == nil {
					continue
				}
				s.handlers.Add(1)
				go func(ev session.Event) {
					defer s.handlers.Done()
					s.opts.OnMessage(ctx, sess, ev)
				}(ev)
			case session.EventClosed:
				s.logger.Info("session closed",
					logging.Bool("logged_out", ev.LoggedOut),
					logging.String("reason", reasonOrDefault(ev.Reason)),
					logging.String(logging.FieldEventType, "session_closed"),
				)
				return ev, nil
			}
		}
	}
}

func (s *Supervisor) loggedOut(ctx context.Context, attempt int, reason string) error {
	cause := fmt.Errorf("%w: %s", ErrLoggedOut, reasonOrDefault(reason))
	if err := s.opts.Client.WipeCredentials(context.WithoutCancel(ctx)); err != nil {
		logging.WarnWithContext(s.logger, "failed to wipe credentials after logout", "credential_wipe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'ledgerbot logout' or delete paths.session_db manually"),
			logging.String(logging.FieldImpact, "stale credentials remain on disk"),
		)
		cause = errors.Join(cause, fmt.Errorf("wipe credentials: %w", err))
	}
	err := &terminalError{kind: "logged_out", err: cause}
	s.transition(Status{State: StateLoggedOut, Attempt: attempt, Err: err})
	logging.ErrorWithContext(s.logger, "device logged out; credentials removed", "logged_out",
		logging.String("reason", reasonOrDefault(reason)),
		logging.String(logging.FieldErrorHint, "restart the bot and link the device again"),
	)
	return err
}

func (s *Supervisor) transition(status Status) {
	s.mu.Lock()
	s.state = status.State
	s.mu.Unlock()
	s.logger.Debug("state changed",
		logging.String(logging.FieldState, string(status.State)),
		logging.Int(logging.FieldAttempt, status.Attempt),
	)
	s.emit(status)
}

func (s *Supervisor) emit(status Status) {
	if s.opts.OnStatus == nil {
		return
	}
	status.MaxAttempts = s.opts.MaxAttempts
	status.Mode = s.opts.Mode
	s.opts.OnStatus(status)
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "unspecified"
	}
	return reason
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
