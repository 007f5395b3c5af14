package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"ledgerbot/internal/config"
	"ledgerbot/internal/logging"
	"ledgerbot/internal/notifications"
	"ledgerbot/internal/relay"
	"ledgerbot/internal/services"
	"ledgerbot/internal/session"
	"ledgerbot/internal/supervisor"
	"ledgerbot/internal/textutil"
)

// DocumentMimeType is the MIME type of the shipped ledger.
const DocumentMimeType = "text/csv"

// ErrDispatch marks failures to ship the ledger. They never stop the bot.
var ErrDispatch = services.ErrDispatch

const notifyTimeout = 15 * time.Second

// Relay is the subset of *relay.Relay the bot drives.
type Relay interface {
	Emit(ev relay.Event)
	ResolveMode(ctx context.Context, preset session.Mode, prompter relay.Prompter, timeout time.Duration) (session.Mode, error)
	Attached() bool
}

// Ledger is the subset of *ledger.Store the bot uses.
type Ledger interface {
	RecordIfNew(ctx context.Context, contactID, displayName string) (bool, error)
	Export(ctx context.Context) ([]byte, error)
	Path() string
}

// Dependencies are the collaborators a Bot wires together. Prompter may be nil
// when no terminal is available; Sleep and Now default to real time.
type Dependencies struct {
	Client   session.Client
	Prober   supervisor.Prober
	Ledger   Ledger
	Relay    Relay
	Notifier notifications.Service
	Prompter relay.Prompter
	Sleep    func(ctx context.Context, d time.Duration) error
	Now      func() time.Time
}

// Bot runs one campaign for the lifetime of the process.
type Bot struct {
	cfg    *config.Config
	deps   Dependencies
	logger *slog.Logger

	mu       sync.Mutex
	campaign *Campaign

	background sync.WaitGroup
}

// New validates dependencies and returns an idle bot.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("bot requires config")
	}
	if deps.Client == nil || deps.Prober == nil || deps.Ledger == nil || deps.Relay == nil {
		return nil, errors.New("bot requires session client, prober, ledger, and relay")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil)
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Bot{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "bot"),
	}, nil
}

// Run resolves the connection mode and supervises the session until ctx is
// cancelled (nil) or the supervisor reaches a terminal state (non-nil).
func (b *Bot) Run(ctx context.Context) error {
	defer b.background.Wait()

	var preset session.Mode
	if raw := strings.TrimSpace(b.cfg.WhatsApp.ConnectMode); raw != "" {
		mode, err := session.ParseMode(raw)
		if err != nil {
			return b.Fail(ctx, services.Wrap(services.ErrConfiguration, "bot", "resolve mode", "", err))
		}
		preset = mode
	}

	mode, err := b.deps.Relay.ResolveMode(ctx, preset, b.deps.Prompter, b.cfg.PromptTimeout())
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return b.Fail(ctx, fmt.Errorf("resolve connection mode: %w", err))
	}

	campaign := newCampaign(mode, b.deps.Now())
	b.mu.Lock()
	b.campaign = campaign
	b.mu.Unlock()

	ctx = services.WithCampaignID(ctx, campaign.ID)
	logger := b.logger.With(
		logging.String(logging.FieldCampaignID, campaign.ID),
		logging.String(logging.FieldMode, mode.String()),
	)
	logger.Info("connection campaign started", logging.String(logging.FieldEventType, "campaign_started"))

	sup, err := supervisor.New(supervisor.Options{
		Client:      b.deps.Client,
		Prober:      b.deps.Prober,
		Host:        b.cfg.Reconnect.ProbeHost,
		Mode:        mode,
		MaxAttempts: b.cfg.Reconnect.MaxAttempts,
		Unit:        b.cfg.BackoffUnit(),
		Sleep:       b.deps.Sleep,
		OnStatus:    func(st supervisor.Status) { b.onStatus(ctx, campaign, st) },
		OnMessage:   func(ctx context.Context, sess session.Session, ev session.Event) { b.handleMessage(ctx, campaign, sess, ev) },
		Logger:      logger,
	})
	if err != nil {
		return b.Fail(ctx, err)
	}

	if err := sup.Run(ctx); err != nil {
		campaign.failed(err)
		b.notifyError(ctx, err, "session")
		return err
	}
	logger.Info("connection campaign stopped", logging.String(logging.FieldEventType, "campaign_stopped"))
	return nil
}

// Fail reports a fatal error to the attached front end and ntfy, then returns err.
func (b *Bot) Fail(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if c := b.currentCampaign(); c != nil {
		c.failed(err)
	}
	b.deps.Relay.Emit(relay.Event{Type: relay.EventError, Message: err.Error()})
	logging.ErrorWithContext(b.logger, "bot stopped", "bot_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
	)
	b.notifyError(ctx, err, "startup")
	return err
}

// Status returns the current campaign snapshot.
func (b *Bot) Status(context.Context) Snapshot {
	snap := Snapshot{State: "awaiting_mode"}
	if c := b.currentCampaign(); c != nil {
		snap = c.snapshot()
	}
	snap.FrontEndAttached = b.deps.Relay.Attached()
	snap.LedgerPath = b.deps.Ledger.Path()
	return snap
}

func (b *Bot) currentCampaign() *Campaign {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.campaign
}

// onStatus maps supervisor progress onto front end events.
func (b *Bot) onStatus(ctx context.Context, c *Campaign, st supervisor.Status) {
	if st.Artifact != "" {
		switch st.Artifact {
		case session.ArtifactQR:
			b.deps.Relay.Emit(relay.Event{Type: relay.EventQR, QR: st.Payload})
		case session.ArtifactPairingCode:
			b.deps.Relay.Emit(relay.Event{Type: relay.EventPairingCode, Code: st.Payload})
		}
		return
	}

	c.observe(st)
	switch st.State {
	case supervisor.StateProbing, supervisor.StateConnecting:
		b.deps.Relay.Emit(relay.Event{
			Type:        relay.EventStatus,
			State:       string(st.State),
			Mode:        st.Mode.String(),
			Attempt:     st.Attempt,
			MaxAttempts: st.MaxAttempts,
		})
	case supervisor.StateBackoffWait:
		ev := relay.Event{
			Type:        relay.EventRetry,
			Attempt:     st.Attempt,
			MaxAttempts: st.MaxAttempts,
			DelayMS:     st.Delay.Milliseconds(),
		}
		if st.Err != nil {
			ev.Message = st.Err.Error()
		}
		b.deps.Relay.Emit(ev)
	case supervisor.StateOpen:
		b.deps.Relay.Emit(relay.Event{Type: relay.EventConnected, Mode: st.Mode.String()})
		b.deps.Relay.Emit(relay.Event{Type: relay.EventRunning})
		b.goNotify(ctx, func(ctx context.Context) error {
			return b.deps.Notifier.NotifyConnected(ctx, st.Mode.String())
		}, "connected")
	case supervisor.StateLoggedOut, supervisor.StateExhausted:
		message := string(st.State)
		if st.Err != nil {
			message = st.Err.Error()
		}
		b.deps.Relay.Emit(relay.Event{Type: relay.EventError, Message: message})
	}
}

func (b *Bot) handleMessage(ctx context.Context, c *Campaign, sess session.Session, ev session.Event) {
	contactID := strings.TrimSpace(ev.Sender)
	if contactID == "" {
		return
	}
	name := textutil.DisplayName(ev.SenderName)
	ctx = services.WithContactID(ctx, contactID)
	logger := b.logger.With(
		logging.String(logging.FieldCampaignID, c.ID),
		logging.String(logging.FieldContactID, contactID),
	)

	added, err := b.deps.Ledger.RecordIfNew(ctx, contactID, name)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(logger, "failed to record contact", "contact_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "check permissions on paths.ledger_file"),
			logging.String(logging.FieldImpact, "contact was not added to the ledger"),
		)
		return
	}
	if !added {
		logger.Debug("known contact", logging.String(logging.FieldEventType, "contact_known"))
		return
	}

	c.contactAdded()
	logger.Info("contact added",
		logging.String("display_name", name),
		logging.String(logging.FieldEventType, "contact_added"),
	)
	b.goNotify(ctx, func(ctx context.Context) error {
		return b.deps.Notifier.NotifyContactAdded(ctx, contactID, name)
	}, "contact_added")

	if !b.cfg.Dispatch.Enabled {
		return
	}
	if err := b.dispatch(ctx, c, sess); err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(logger, "ledger dispatch failed", "dispatch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next new contact will resend the full ledger"),
			logging.String(logging.FieldImpact, "recipient has a stale copy of the ledger"),
		)
	}
}

// dispatch waits a random delay and sends the full ledger to the recipient.
func (b *Bot) dispatch(ctx context.Context, c *Campaign, sess session.Session) error {
	if err := b.deps.Sleep(ctx, b.dispatchDelay()); err != nil {
		return services.Wrap(ErrDispatch, "dispatch", "delay", "", err)
	}
	data, err := b.deps.Ledger.Export(ctx)
	if err != nil {
		return services.Wrap(ErrDispatch, "dispatch", "export", "", err)
	}
	recipient := b.cfg.WhatsApp.Recipient
	if err := sess.SendDocument(ctx, recipient, data, b.cfg.Dispatch.FileName, DocumentMimeType, b.cfg.Dispatch.Caption); err != nil {
		return services.Wrap(ErrDispatch, "dispatch", "send", recipient, err)
	}
	c.dispatched(b.deps.Now())
	b.logger.Info("ledger sent",
		logging.String(logging.FieldCampaignID, c.ID),
		logging.String("recipient", recipient),
		logging.Int("bytes", len(data)),
		logging.String(logging.FieldEventType, "ledger_sent"),
	)
	return nil
}

func (b *Bot) dispatchDelay() time.Duration {
	lo, hi := b.cfg.DispatchDelayRange()
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}

func (b *Bot) notifyError(ctx context.Context, err error, label string) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if nerr := b.deps.Notifier.NotifyError(notifyCtx, err, label); nerr != nil {
		logging.WarnWithContext(b.logger, "error notification failed", "notify_failed",
			logging.Error(nerr),
			logging.String(logging.FieldImpact, "operator was not alerted"),
		)
	}
}

// goNotify sends a notification without holding up the caller.
func (b *Bot) goNotify(ctx context.Context, send func(context.Context) error, event string) {
	b.background.Add(1)
	go func() {
		defer b.background.Done()
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := send(notifyCtx); err != nil {
			logging.WarnWithContext(b.logger, "notification failed", "notify_failed",
				logging.Error(err),
				logging.String("notification", event),
				logging.String(logging.FieldImpact, "operator was not alerted"),
			)
		}
	}()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
