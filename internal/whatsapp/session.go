package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"ledgerbot/internal/logging"
	"ledgerbot/internal/session"
)

const (
	eventBuffer      = 64
	eventSendTimeout = 5 * time.Second
)

// Session is one whatsmeow connection.
type Session struct {
	client *whatsmeow.Client
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	events   chan session.Event
	finished bool
	opened   bool

	closeOnce sync.Once
}

func newSession(client *whatsmeow.Client, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		client: client,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan session.Event, eventBuffer),
	}
	client.AddEventHandler(s.handleEvent)
	return s
}

func (s *Session) Events() <-chan session.Event {
	return s.events
}

// SendDocument uploads data and sends it to recipient as a document message.
func (s *Session) SendDocument(ctx context.Context, recipient string, data []byte, fileName, mimeType, caption string) error {
	jid, err := types.ParseJID(recipient)
	if err != nil {
		return fmt.Errorf("parse recipient %q: %w", recipient, err)
	}
	if !s.client.IsConnected() {
		return errors.New("session not connected")
	}
	uploaded, err := s.client.Upload(ctx, data, whatsmeow.MediaDocument)
	if err != nil {
		return fmt.Errorf("upload document: %w", err)
	}
	msg := &waE2E.Message{
		DocumentMessage: &waE2E.DocumentMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimeType),
			FileName:      proto.String(fileName),
			Title:         proto.String(fileName),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	}
	resp, err := s.client.SendMessage(ctx, jid, msg)
	if err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	s.logger.Debug("document sent",
		logging.String("recipient", jid.String()),
		logging.String("message_id", resp.ID),
		logging.Int("bytes", len(data)),
	)
	return nil
}

// Close disconnects and detaches event handlers. The event channel is closed
// after a final closed event if none was delivered yet.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.client.RemoveEventHandlers()
		s.client.Disconnect()
		s.finish(session.Event{Kind: session.EventClosed, Reason: "closed locally"})
	})
}

func (s *Session) handleEvent(evt any) {
	ev, ok := translate(evt)
	if !ok {
		return
	}
	switch ev.Kind {
	case session.EventOpened:
		s.mu.Lock()
		s.opened = true
		s.mu.Unlock()
		s.emit(ev)
	case session.EventClosed:
		s.finish(ev)
	default:
		s.emit(ev)
	}
}

func (s *Session) isOpened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// emit delivers ev unless the session already finished. It waits briefly for
// a slow consumer before dropping the event.
func (s *Session) emit(ev session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	timer := time.NewTimer(eventSendTimeout)
	defer timer.Stop()
	select {
	case s.events <- ev:
	case <-timer.C:
		s.logger.Warn("session event dropped; consumer not reading",
			logging.String("kind", string(ev.Kind)),
			logging.String(logging.FieldEventType, "session_event_dropped"),
			logging.String(logging.FieldErrorHint, "check supervisor health"),
			logging.String(logging.FieldImpact, "an inbound message may not be recorded"),
		)
	}
}

// finish delivers the terminal closed event and closes the channel.
func (s *Session) finish(ev session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	timer := time.NewTimer(eventSendTimeout)
	defer timer.Stop()
	select {
	case s.events <- ev:
	case <-timer.C:
		s.logger.Debug("closing session without final event", logging.String("reason", ev.Reason))
	}
	close(s.events)
}
