package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ledgerbot/internal/logging"
	"ledgerbot/internal/session"
)

const queueSize = 16

// flushTimeout bounds how long Close waits for queued events to reach a
// front end.
const flushTimeout = 2 * time.Second

// FrontEnd receives events. Send is called from a single goroutine per
// attachment; Close is called once when the front end is evicted or the
// relay shuts down.
type FrontEnd interface {
	Name() string
	Send(ctx context.Context, ev Event) error
	Close(reason string)
}

// Prompter asks a human for the connection mode. PromptMode must return
// promptly once ctx is done.
type Prompter interface {
	PromptMode(ctx context.Context) (session.Mode, error)
}

// Relay routes events between the bot and the attached front end.
type Relay struct {
	logger *slog.Logger

	mu       sync.Mutex
	current  *attachment
	fallback *attachment
	mode     session.Mode
	closed   bool

	selections chan session.Mode
}

// New returns a relay. fallback may be nil.
func New(logger *slog.Logger, fallback FrontEnd) *Relay {
	r := &Relay{
		logger:     logging.NewComponentLogger(logger, "relay"),
		selections: make(chan session.Mode, 1),
	}
	if fallback != nil {
		r.fallback = r.start(fallback)
	}
	return r
}

// Attach makes fe the current front end, evicting any previous one.
func (r *Relay) Attach(fe FrontEnd) {
	a := r.start(fe)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		a.stop("relay closed")
		return
	}
	prev := r.current
	r.current = a
	r.mu.Unlock()

	if prev != nil {
		r.logger.Info("front end replaced",
			logging.String("previous", prev.fe.Name()),
			logging.String("current", fe.Name()),
			logging.String(logging.FieldEventType, "frontend_evicted"),
		)
		prev.stop("replaced by a newer connection")
	} else {
		r.logger.Info("front end attached",
			logging.String("frontend", fe.Name()),
			logging.String(logging.FieldEventType, "frontend_attached"),
		)
	}
}

// Detach removes fe if it is still the current front end.
func (r *Relay) Detach(fe FrontEnd) {
	r.mu.Lock()
	a := r.current
	if a == nil || a.fe != fe {
		r.mu.Unlock()
		return
	}
	r.current = nil
	r.mu.Unlock()
	a.stopQuiet()
	r.logger.Info("front end detached",
		logging.String("frontend", fe.Name()),
		logging.String(logging.FieldEventType, "frontend_detached"),
	)
}

// Attached reports whether a front end other than the fallback is attached.
func (r *Relay) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Emit offers ev to the current front end, or to the fallback when none is
// attached. It never blocks.
func (r *Relay) Emit(ev Event) {
	r.mu.Lock()
	a := r.current
	if a == nil {
		a = r.fallback
	}
	closed := r.closed
	r.mu.Unlock()
	if a == nil || closed {
		return
	}
	if !a.offer(ev) {
		r.logger.Debug("front end queue full; event dropped",
			logging.String("frontend", a.fe.Name()),
			logging.String("type", string(ev.Type)),
		)
	}
}

// HandleInbound processes a message received from fe.
func (r *Relay) HandleInbound(fe FrontEnd, msg Inbound) {
	if msg.Type != InboundSelectMode {
		r.logger.Debug("ignoring inbound message",
			logging.String("frontend", fe.Name()),
			logging.String("type", msg.Type),
		)
		return
	}
	mode, err := session.ParseMode(msg.Mode)
	if err != nil {
		r.sendTo(fe, Event{Type: EventError, Message: err.Error()})
		return
	}
	if current, ok := r.Mode(); ok {
		r.sendTo(fe, Event{Type: EventModeSelected, Mode: current.String()})
		return
	}
	select {
	case r.selections <- mode:
		r.logger.Info("connection mode received from front end",
			logging.String("frontend", fe.Name()),
			logging.String(logging.FieldMode, mode.String()),
		)
	default:
		r.logger.Debug("mode selection already pending; ignoring", logging.String(logging.FieldMode, mode.String()))
	}
}

// Mode returns the resolved connection mode.
func (r *Relay) Mode() (session.Mode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode, r.mode != ""
}

// ResolveMode decides the connection mode for this run. A non-empty preset
// wins without prompting. Otherwise the first of a remote selectMode message
// and the terminal prompt wins and the other is cancelled; if neither answers
// within timeout the mode defaults to qrcode. The decision is immutable.
func (r *Relay) ResolveMode(ctx context.Context, preset session.Mode, prompter Prompter, timeout time.Duration) (session.Mode, error) {
	if mode, ok := r.Mode(); ok {
		return mode, nil
	}
	if preset != "" {
		return r.settle(preset, "preset"), nil
	}

	raceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		mode session.Mode
		err  error
	}
	var prompted chan answer
	if prompter != nil {
		prompted = make(chan answer, 1)
		go func() {
			mode, err := prompter.PromptMode(raceCtx)
			prompted <- answer{mode: mode, err: err}
		}()
	}

	for {
		select {
		case mode := <-r.selections:
			cancel()
			return r.settle(mode, "remote"), nil
		case ans := <-prompted:
			prompted = nil
			if ans.err == nil && ans.mode != "" {
				cancel()
				return r.settle(ans.mode, "terminal"), nil
			}
			if ans.err != nil && !errors.Is(ans.err, context.Canceled) && !errors.Is(ans.err, context.DeadlineExceeded) {
				r.logger.Debug("terminal prompt gave no answer", logging.Error(ans.err))
			}
		case <-raceCtx.Done():
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			r.logger.Info("no connection mode chosen before timeout; using qrcode",
				logging.Duration("timeout", timeout),
				logging.String(logging.FieldEventType, "mode_default"),
			)
			return r.settle(session.ModeQRCode, "default"), nil
		}
	}
}

// Close delivers events already queued, waiting at most flushTimeout per
// attachment, then stops every attachment.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	current, fallback := r.current, r.fallback
	r.current, r.fallback = nil, nil
	r.mu.Unlock()

	if current != nil {
		current.drain()
		current.stop("shutting down")
	}
	if fallback != nil {
		fallback.drain()
		fallback.stopQuiet()
	}
}

func (r *Relay) settle(mode session.Mode, source string) session.Mode {
	r.mu.Lock()
	if r.mode == "" {
		r.mode = mode
	}
	mode = r.mode
	r.mu.Unlock()

	r.logger.Info("connection mode selected",
		logging.String(logging.FieldMode, mode.String()),
		logging.String("source", source),
		logging.String(logging.FieldEventType, "mode_selected"),
	)
	r.Emit(Event{Type: EventModeSelected, Mode: mode.String()})
	return mode
}

// sendTo replies to fe directly when it is the current attachment.
func (r *Relay) sendTo(fe FrontEnd, ev Event) {
	r.mu.Lock()
	a := r.current
	r.mu.Unlock()
	if a != nil && a.fe == fe {
		a.offer(ev)
	}
}

func (r *Relay) start(fe FrontEnd) *attachment {
	ctx, cancel := context.WithCancel(context.Background())
	a := &attachment{
		fe:       fe,
		events:   make(chan Event, queueSize),
		ctx:      ctx,
		cancel:   cancel,
		draining: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   r.logger,
	}
	go a.pump()
	return a
}

type attachment struct {
	fe     FrontEnd
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	draining  chan struct{}
	done      chan struct{}
	drainOnce sync.Once
	once      sync.Once
}

func (a *attachment) offer(ev Event) bool {
	if a.ctx.Err() != nil {
		return true
	}
	select {
	case a.events <- ev:
		return true
	default:
		return false
	}
}

func (a *attachment) pump() {
	defer close(a.done)
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.draining:
			a.flush()
			return
		case ev := <-a.events:
			a.send(a.ctx, ev)
		}
	}
}

// flush sends whatever is still queued on a context of its own, since the
// attachment context is cancelled right after.
func (a *attachment) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		if ctx.Err() != nil || a.ctx.Err() != nil {
			return
		}
		select {
		case ev := <-a.events:
			a.send(ctx, ev)
		default:
			return
		}
	}
}

func (a *attachment) send(ctx context.Context, ev Event) {
	if err := a.fe.Send(ctx, ev); err != nil && ctx.Err() == nil {
		a.logger.Debug("front end send failed",
			logging.String("frontend", a.fe.Name()),
			logging.String("type", string(ev.Type)),
			logging.Error(err),
		)
	}
}

// drain asks the pump to flush its queue and waits for it to finish.
func (a *attachment) drain() {
	a.drainOnce.Do(func() { close(a.draining) })
	timer := time.NewTimer(flushTimeout)
	defer timer.Stop()
	select {
	case <-a.done:
	case <-timer.C:
	}
}

func (a *attachment) stop(reason string) {
	a.once.Do(func() {
		a.cancel()
		a.fe.Close(reason)
	})
}

func (a *attachment) stopQuiet() {
	a.once.Do(a.cancel)
}
