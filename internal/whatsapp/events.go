package whatsapp

import (
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"ledgerbot/internal/session"
)

// translate maps a whatsmeow event onto the session vocabulary. It reports
// false for events the bot does not act on.
func translate(evt any) (session.Event, bool) {
	switch e := evt.(type) {
	case *events.Connected:
		return session.Event{Kind: session.EventOpened}, true
	case *events.LoggedOut:
		return session.Event{Kind: session.EventClosed, LoggedOut: true, Reason: e.Reason.String()}, true
	case *events.ConnectFailure:
		return session.Event{Kind: session.EventClosed, LoggedOut: e.Reason.IsLoggedOut(), Reason: e.Reason.String()}, true
	case *events.StreamReplaced:
		return session.Event{Kind: session.EventClosed, Reason: "stream replaced by another client"}, true
	case *events.TemporaryBan:
		return session.Event{Kind: session.EventClosed, Reason: e.String()}, true
	case *events.ClientOutdated:
		return session.Event{Kind: session.EventClosed, Reason: "client outdated"}, true
	case *events.Disconnected:
		return session.Event{Kind: session.EventClosed, Reason: "disconnected"}, true
	case *events.Message:
		return translateMessage(e)
	}
	return session.Event{}, false
}

// translateMessage keeps direct messages from other people. Messages sent by
// this account, group chats and status broadcasts are ignored.
func translateMessage(e *events.Message) (session.Event, bool) {
	if e == nil || e.Info.IsFromMe || e.Info.IsGroup {
		return session.Event{}, false
	}
	chat := e.Info.Chat
	if chat.IsEmpty() || chat.Server == types.BroadcastServer {
		return session.Event{}, false
	}
	return session.Event{
		Kind:       session.EventMessage,
		Sender:     chat.ToNonAD().String(),
		SenderName: e.Info.PushName,
	}, true
}
