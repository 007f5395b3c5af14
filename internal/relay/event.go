package relay

// EventType tags outbound front end messages.
type EventType string

const (
	EventQR           EventType = "qr"
	EventPairingCode  EventType = "pairingCode"
	EventConnected    EventType = "connected"
	EventRunning      EventType = "running"
	EventRetry        EventType = "retry"
	EventError        EventType = "error"
	EventModeSelected EventType = "modeSelected"
	EventStatus       EventType = "status"
)

// Event is one outbound message. It is encoded as JSON on the WebSocket.
type Event struct {
	Type        EventType `json:"type"`
	QR          string    `json:"qr,omitempty"`
	Code        string    `json:"code,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Message     string    `json:"message,omitempty"`
	State       string    `json:"state,omitempty"`
	Attempt     int       `json:"attempt,omitempty"`
	MaxAttempts int       `json:"maxAttempts,omitempty"`
	DelayMS     int64     `json:"delayMs,omitempty"`
}

// InboundSelectMode is the only inbound message type understood by the relay.
const InboundSelectMode = "selectMode"

// Inbound is a message received from a front end.
type Inbound struct {
	Type string `json:"type"`
	Mode string `json:"mode,omitempty"`
}
