package bot_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ledgerbot/internal/bot"
	"ledgerbot/internal/config"
	"ledgerbot/internal/ledger"
	"ledgerbot/internal/notifications"
	"ledgerbot/internal/relay"
	"ledgerbot/internal/session"
	"ledgerbot/internal/supervisor"
	"ledgerbot/internal/testsupport"
)

type fakeRelay struct {
	resolved session.Mode

	mu     sync.Mutex
	events []relay.Event
}

func (r *fakeRelay) Emit(ev relay.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *fakeRelay) ResolveMode(_ context.Context, preset session.Mode, _ relay.Prompter, _ time.Duration) (session.Mode, error) {
	if preset != "" {
		return preset, nil
	}
	return r.resolved, nil
}

func (r *fakeRelay) Attached() bool { return false }

func (r *fakeRelay) types() []relay.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]relay.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *fakeRelay) find(typ relay.EventType) (relay.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == typ {
			return ev, true
		}
	}
	return relay.Event{}, false
}

type stubProber bool

func (s stubProber) Probe(context.Context, string) bool { return bool(s) }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type harness struct {
	cfg    *config.Config
	relay  *fakeRelay
	client *testsupport.FakeClient
	sess   *testsupport.FakeSession
	ledger *ledger.Store
	bot    *bot.Bot
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		cfg:   cfg,
		relay: &fakeRelay{resolved: session.ModeQRCode},
		sess:  testsupport.NewFakeSession(),
	}
	h.client = &testsupport.FakeClient{
		OpenFunc: func(ctx context.Context, _ session.Mode, call int) (session.Session, error) {
			if call == 1 {
				return h.sess, nil
			}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	h.ledger = testsupport.MustOpenLedger(t, cfg)
	b, err := bot.New(cfg, bot.Dependencies{
		Client:   h.client,
		Prober:   stubProber(true),
		Ledger:   h.ledger,
		Relay:    h.relay,
		Notifier: notifications.NewService(cfg),
	}, nil)
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}
	h.bot = b
	return h
}

func (h *harness) start(t *testing.T) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func message(sender, name string) session.Event {
	return session.Event{Kind: session.EventMessage, Sender: sender, SenderName: name}
}

func TestNewContactIsRecordedAndLedgerShipped(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConnectMode(config.ModePairing), testsupport.WithRecipient("23791008288@s.whatsapp.net"))
	h := newHarness(t, cfg)
	cancel, done := h.start(t)

	h.sess.Push(session.Event{Kind: session.EventArtifactReady, Artifact: session.ArtifactPairingCode, Payload: "ABCD-EFGH"})
	h.sess.Push(session.Event{Kind: session.EventOpened})
	h.sess.Push(message("237600000001@s.whatsapp.net", "Alice"))

	waitFor(t, "ledger dispatch", func() bool { return len(h.sess.Sent()) == 1 })

	sent := h.sess.Sent()[0]
	if sent.Recipient != "23791008288@s.whatsapp.net" {
		t.Fatalf("unexpected recipient %q", sent.Recipient)
	}
	if sent.FileName != "contacts.csv" || sent.MimeType != "text/csv" || sent.Caption != "Fichier CSV des contacts mis à jour." {
		t.Fatalf("unexpected document metadata %+v", sent)
	}
	contacts, err := ledger.Parse(sent.Data)
	if err != nil {
		t.Fatalf("parse shipped ledger: %v", err)
	}
	if len(contacts) != 1 || contacts[0].ID != "237600000001@s.whatsapp.net" || contacts[0].DisplayName != "Alice" {
		t.Fatalf("unexpected shipped contacts %+v", contacts)
	}

	// A repeat message from a known contact changes nothing.
	h.sess.Push(message("237600000001@s.whatsapp.net", "Alice"))
	h.sess.Push(message("", "nobody"))
	time.Sleep(50 * time.Millisecond)
	if got := len(h.sess.Sent()); got != 1 {
		t.Fatalf("expected one dispatch, got %d", got)
	}

	snap := h.bot.Status(context.Background())
	if snap.State != string(supervisor.StateOpen) || snap.Mode != "pairing" || snap.ContactsAdded != 1 || snap.Dispatches != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.LedgerPath != cfg.Paths.LedgerFile {
		t.Fatalf("unexpected ledger path %q", snap.LedgerPath)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v after cancel", err)
	}

	want := []relay.EventType{
		relay.EventStatus, relay.EventStatus,
		relay.EventPairingCode,
		relay.EventConnected, relay.EventRunning,
	}
	if diff := cmp.Diff(want, h.relay.types()); diff != "" {
		t.Fatalf("relay events mismatch (-want +got):\n%s", diff)
	}
	if ev, _ := h.relay.find(relay.EventPairingCode); ev.Code != "ABCD-EFGH" {
		t.Fatalf("unexpected pairing code event %+v", ev)
	}
}

func TestDispatchFailureKeepsContact(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConnectMode(config.ModeQRCode))
	h := newHarness(t, cfg)
	h.sess.FailSends(errors.New("upload rejected"))
	cancel, done := h.start(t)

	h.sess.Push(session.Event{Kind: session.EventOpened})
	h.sess.Push(message("237600000002@s.whatsapp.net", ""))

	waitFor(t, "contact recorded", func() bool {
		return h.bot.Status(context.Background()).ContactsAdded == 1
	})
	found, err := h.ledger.Exists(context.Background(), "237600000002@s.whatsapp.net")
	if err != nil || !found {
		t.Fatalf("expected contact in ledger, found=%v err=%v", found, err)
	}
	contacts, err := h.ledger.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if contacts[0].DisplayName != ledger.UnknownName {
		t.Fatalf("expected default display name, got %q", contacts[0].DisplayName)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if snap := h.bot.Status(context.Background()); snap.Dispatches != 0 {
		t.Fatalf("expected no successful dispatch, got %d", snap.Dispatches)
	}
}

func TestDispatchDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConnectMode(config.ModeQRCode))
	cfg.Dispatch.Enabled = false
	h := newHarness(t, cfg)
	cancel, done := h.start(t)

	h.sess.Push(session.Event{Kind: session.EventOpened})
	h.sess.Push(message("237600000003@s.whatsapp.net", "Carol"))
	waitFor(t, "contact recorded", func() bool {
		return h.bot.Status(context.Background()).ContactsAdded == 1
	})
	cancel()
	<-done
	if got := len(h.sess.Sent()); got != 0 {
		t.Fatalf("expected no dispatch, got %d", got)
	}
}

func TestLoggedOutIsFatalAndNotified(t *testing.T) {
	titles := make(chan string, 8)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles <- r.Header.Get("Title")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ntfy.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithConnectMode(config.ModeQRCode), testsupport.WithNtfyTopic(ntfy.URL))
	h := newHarness(t, cfg)
	_, done := h.start(t)

	h.sess.Push(session.Event{Kind: session.EventClosed, LoggedOut: true, Reason: "logged out from phone"})

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after logout")
	}
	if !errors.Is(err, supervisor.ErrLoggedOut) {
		t.Fatalf("expected ErrLoggedOut, got %v", err)
	}
	if h.client.Wipes() != 1 {
		t.Fatalf("expected credentials wiped once, got %d", h.client.Wipes())
	}
	ev, ok := h.relay.find(relay.EventError)
	if !ok || ev.Message == "" {
		t.Fatalf("expected error event, got %+v", h.relay.types())
	}

	select {
	case title := <-titles:
		if title != "ledgerbot - Error" {
			t.Fatalf("unexpected notification %q", title)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected error notification")
	}

	if snap := h.bot.Status(context.Background()); snap.State != string(supervisor.StateLoggedOut) || snap.LastError == "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestUnreachableNetworkExhaustsRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConnectMode(config.ModeQRCode), testsupport.WithMaxAttempts(3))
	rel := &fakeRelay{}
	client := &testsupport.FakeClient{}

	var (
		mu     sync.Mutex
		sleeps []time.Duration
	)
	b, err := bot.New(cfg, bot.Dependencies{
		Client:   client,
		Prober:   stubProber(false),
		Ledger:   testsupport.MustOpenLedger(t, cfg),
		Relay:    rel,
		Notifier: notifications.NewService(cfg),
		Sleep: func(_ context.Context, d time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			sleeps = append(sleeps, d)
			return nil
		},
	}, nil)
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}

	err = b.Run(context.Background())
	if !errors.Is(err, supervisor.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if len(client.Opens()) != 0 {
		t.Fatalf("session must not be opened while unreachable, got %d opens", len(client.Opens()))
	}

	unit := cfg.BackoffUnit()
	mu.Lock()
	got := append([]time.Duration(nil), sleeps...)
	mu.Unlock()
	if diff := cmp.Diff([]time.Duration{2 * unit, 4 * unit}, got); diff != "" {
		t.Fatalf("backoff waits mismatch (-want +got):\n%s", diff)
	}
	ev, ok := rel.find(relay.EventRetry)
	if !ok || ev.MaxAttempts != 3 {
		t.Fatalf("expected retry event bounded by 3 attempts, got %+v", ev)
	}
	if _, ok := rel.find(relay.EventError); !ok {
		t.Fatalf("expected error event, got %v", rel.types())
	}
	if snap := b.Status(context.Background()); snap.State != string(supervisor.StateExhausted) {
		t.Fatalf("unexpected snapshot state %q", snap.State)
	}
}

func TestResolvedModeIsUsedWhenNotPreset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newHarness(t, cfg)
	h.relay.resolved = session.ModePairing
	cancel, done := h.start(t)

	waitFor(t, "session open call", func() bool { return len(h.client.Opens()) > 0 })
	cancel()
	<-done
	if got := h.client.Opens()[0]; got != session.ModePairing {
		t.Fatalf("expected pairing mode, got %s", got)
	}
}

func TestInvalidPresetModeFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.WhatsApp.ConnectMode = "sms"
	h := newHarness(t, cfg)

	err := h.bot.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for invalid mode")
	}
	if _, ok := h.relay.find(relay.EventError); !ok {
		t.Fatal("expected startup failure to be broadcast")
	}
	if len(h.client.Opens()) != 0 {
		t.Fatal("session must not be opened")
	}
}

func TestStatusBeforeCampaign(t *testing.T) {
	h := newHarness(t, testsupport.NewConfig(t))
	if snap := h.bot.Status(context.Background()); snap.State != "awaiting_mode" || snap.CampaignID != "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := bot.New(nil, bot.Dependencies{}, nil); err == nil {
		t.Fatal("expected error without config")
	}
	if _, err := bot.New(cfg, bot.Dependencies{Client: &testsupport.FakeClient{}}, nil); err == nil {
		t.Fatal("expected error without prober, ledger, and relay")
	}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "ledgerbot.lock")
	first, err := bot.AcquireLock(path)
	if err != nil {
		t.Fatalf("first AcquireLock: %v", err)
	}
	if _, err := bot.AcquireLock(path); !errors.Is(err, bot.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	second, err := bot.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock after unlock: %v", err)
	}
	_ = second.Unlock()
}
