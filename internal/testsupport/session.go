package testsupport

import (
	"context"
	"sync"

	"ledgerbot/internal/session"
)

// SentDocument records one FakeSession.SendDocument call.
type SentDocument struct {
	Recipient string
	Data      []byte
	FileName  string
	MimeType  string
	Caption   string
}

// FakeSession is an in-memory session.Session. Tests push events with Push.
type FakeSession struct {
	events chan session.Event

	mu      sync.Mutex
	sent    []SentDocument
	sendErr error
	closed  bool
}

// NewFakeSession returns a session with a buffered event channel.
func NewFakeSession() *FakeSession {
	return &FakeSession{events: make(chan session.Event, 32)}
}

// Push delivers ev to the session's consumer.
func (s *FakeSession) Push(ev session.Event) {
	s.events <- ev
}

// FailSends makes subsequent SendDocument calls return err.
func (s *FakeSession) FailSends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

func (s *FakeSession) Events() <-chan session.Event {
	return s.events
}

func (s *FakeSession) SendDocument(_ context.Context, recipient string, data []byte, fileName, mimeType, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, SentDocument{
		Recipient: recipient,
		Data:      append([]byte(nil), data...),
		FileName:  fileName,
		MimeType:  mimeType,
		Caption:   caption,
	})
	return nil
}

func (s *FakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Sent returns a copy of the documents sent so far.
func (s *FakeSession) Sent() []SentDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentDocument(nil), s.sent...)
}

// Closed reports whether Close was called.
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FakeClient is a scripted session.Client. OpenFunc receives the 1-based
// call count; when nil, every Open returns a fresh FakeSession.
type FakeClient struct {
	OpenFunc func(ctx context.Context, mode session.Mode, call int) (session.Session, error)
	WipeErr  error

	mu    sync.Mutex
	opens []session.Mode
	wipes int
}

func (c *FakeClient) Open(ctx context.Context, mode session.Mode) (session.Session, error) {
	c.mu.Lock()
	c.opens = append(c.opens, mode)
	call := len(c.opens)
	c.mu.Unlock()
	if c.OpenFunc == nil {
		return NewFakeSession(), nil
	}
	return c.OpenFunc(ctx, mode, call)
}

func (c *FakeClient) WipeCredentials(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wipes++
	return c.WipeErr
}

// Opens returns the modes passed to Open in call order.
func (c *FakeClient) Opens() []session.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]session.Mode(nil), c.opens...)
}

// Wipes returns how many times WipeCredentials was called.
func (c *FakeClient) Wipes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wipes
}
