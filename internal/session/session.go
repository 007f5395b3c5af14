package session

import (
	"context"
	"fmt"
	"strings"
)

// Mode selects how a new device is linked to the account.
type Mode string

const (
	ModeQRCode  Mode = "qrcode"
	ModePairing Mode = "pairing"
)

// ParseMode validates a user-supplied connection mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeQRCode:
		return ModeQRCode, nil
	case ModePairing:
		return ModePairing, nil
	default:
		return "", fmt.Errorf("unknown connection mode %q (want qrcode or pairing)", value)
	}
}

func (m Mode) String() string { return string(m) }

// EventKind enumerates session lifecycle notifications.
type EventKind string

const (
	// EventArtifactReady carries a QR payload or pairing code for the human.
	EventArtifactReady EventKind = "artifact_ready"
	EventOpened        EventKind = "opened"
	EventClosed        EventKind = "closed"
	EventMessage       EventKind = "message_received"
)

// ArtifactKind distinguishes the two linking artifacts.
type ArtifactKind string

const (
	ArtifactQR          ArtifactKind = "qr"
	ArtifactPairingCode ArtifactKind = "pairing_code"
)

// Event is one notification from a Session. Only the fields relevant to Kind
// are populated.
type Event struct {
	Kind EventKind

	Artifact ArtifactKind
	Payload  string

	LoggedOut bool
	Reason    string

	Sender     string
	SenderName string
}

// Client opens sessions against the messaging service.
type Client interface {
	// Open starts connecting in the given mode. The returned session reports
	// progress through Events; Open itself only fails for errors detected
	// before the connection is attempted.
	Open(ctx context.Context, mode Mode) (Session, error)
	// WipeCredentials deletes the persisted device credentials.
	WipeCredentials(ctx context.Context) error
}

// Session is one live connection.
type Session interface {
	// Events is closed after the final EventClosed has been delivered.
	Events() <-chan Event
	SendDocument(ctx context.Context, recipient string, data []byte, fileName, mimeType, caption string) error
	Close()
}
