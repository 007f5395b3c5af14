package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"

	"ledgerbot/internal/logging"
	"ledgerbot/internal/session"
)

// pairingClientName is shown on the phone while entering a pairing code.
const pairingClientName = "Chrome (Linux)"

const logoutConnectTimeout = 15 * time.Second

// Options configures the whatsmeow client.
type Options struct {
	SessionDB   string
	DeviceName  string
	PhoneNumber string
	// ConnectTimeout bounds how long a stored device may take to reach Open.
	ConnectTimeout time.Duration
}

// Client opens whatsmeow sessions backed by a SQLite credential store.
type Client struct {
	opts      Options
	db        *sql.DB
	container *sqlstore.Container
	logger    *slog.Logger
}

// NewClient opens the credential database and upgrades its schema.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	path := strings.TrimSpace(opts.SessionDB)
	if path == "" {
		return nil, errors.New("session database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	db.SetMaxOpenConns(1)

	componentLogger := logging.NewComponentLogger(logger, "whatsapp")
	container := sqlstore.NewWithDB(db, "sqlite3", newWALogger(componentLogger, "store"))
	if err := container.Upgrade(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("upgrade session store: %w", err)
	}

	if name := strings.TrimSpace(opts.DeviceName); name != "" {
		store.DeviceProps.Os = proto.String(name)
	}

	return &Client{
		opts:      opts,
		db:        db,
		container: container,
		logger:    componentLogger,
	}, nil
}

// sqliteDSN enables the pragmas whatsmeow's schema relies on.
func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// Close releases the credential database.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Linked reports whether credentials for a linked device are stored.
func (c *Client) Linked(ctx context.Context) (bool, error) {
	device, err := c.container.GetFirstDevice(ctx)
	if err != nil {
		return false, fmt.Errorf("load device: %w", err)
	}
	return device.ID != nil, nil
}

// Open connects a new session. Unlinked devices receive QR codes or a
// pairing code through artifact events depending on mode.
func (c *Client) Open(ctx context.Context, mode session.Mode) (session.Session, error) {
	if mode == session.ModePairing && c.opts.PhoneNumber == "" {
		return nil, errors.New("pairing mode requires whatsapp.phone_number")
	}
	device, err := c.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	client := whatsmeow.NewClient(device, newWALogger(c.logger, "client"))
	client.EnableAutoReconnect = false
	sess := newSession(client, c.logger)

	linked := client.Store.ID != nil
	var qrItems <-chan whatsmeow.QRChannelItem
	if !linked {
		qrItems, err = client.GetQRChannel(sess.ctx)
		if err != nil {
			sess.Close()
			return nil, fmt.Errorf("qr channel: %w", err)
		}
	}

	if err := client.Connect(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	if linked {
		go c.watchConnect(sess)
	} else {
		go c.consumeQR(sess, mode, qrItems)
	}
	c.logger.Info("session connecting",
		logging.String(logging.FieldMode, mode.String()),
		logging.Bool("linked", linked),
	)
	return sess, nil
}

// watchConnect closes a stored-device session that never reaches Open.
func (c *Client) watchConnect(sess *Session) {
	timeout := c.opts.ConnectTimeout
	if timeout <= 0 {
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-sess.ctx.Done():
	case <-timer.C:
		if !sess.isOpened() {
			sess.finish(session.Event{Kind: session.EventClosed, Reason: fmt.Sprintf("not connected after %s", timeout)})
			sess.client.Disconnect()
		}
	}
}

func (c *Client) consumeQR(sess *Session, mode session.Mode, items <-chan whatsmeow.QRChannelItem) {
	paired := false
	for item := range items {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			if mode == session.ModeQRCode {
				sess.emit(session.Event{Kind: session.EventArtifactReady, Artifact: session.ArtifactQR, Payload: item.Code})
				continue
			}
			if paired {
				continue
			}
			paired = true
			code, err := sess.client.PairPhone(sess.ctx, c.opts.PhoneNumber, true, whatsmeow.PairClientChrome, pairingClientName)
			if err != nil {
				sess.finish(session.Event{Kind: session.EventClosed, Reason: "pairing code request failed: " + err.Error()})
				sess.client.Disconnect()
				return
			}
			sess.emit(session.Event{Kind: session.EventArtifactReady, Artifact: session.ArtifactPairingCode, Payload: code})
		case whatsmeow.QRChannelSuccess.Event:
			c.logger.Info("device linked", logging.String(logging.FieldEventType, "device_linked"))
		case whatsmeow.QRChannelTimeout.Event:
			sess.finish(session.Event{Kind: session.EventClosed, Reason: "link timed out"})
			sess.client.Disconnect()
			return
		default:
			reason := item.Event
			if item.Error != nil {
				reason = item.Error.Error()
			}
			sess.finish(session.Event{Kind: session.EventClosed, Reason: "link failed: " + reason})
			sess.client.Disconnect()
			return
		}
	}
}

// WipeCredentials deletes the stored device so the next run links afresh.
func (c *Client) WipeCredentials(ctx context.Context) error {
	device, err := c.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load device: %w", err)
	}
	if device.ID == nil {
		return nil
	}
	if err := device.Delete(ctx); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	c.logger.Info("stored credentials removed", logging.String(logging.FieldEventType, "credentials_wiped"))
	return nil
}

// Logout unlinks the device on the server when possible and always removes
// the local credentials.
func (c *Client) Logout(ctx context.Context) error {
	device, err := c.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load device: %w", err)
	}
	if device.ID == nil {
		return nil
	}
	client := whatsmeow.NewClient(device, newWALogger(c.logger, "client"))
	client.EnableAutoReconnect = false
	if err := client.Connect(); err == nil {
		defer client.Disconnect()
		if client.WaitForConnection(logoutConnectTimeout) {
			if err := client.Logout(ctx); err == nil {
				return nil
			}
		}
		logging.WarnWithContext(c.logger, "server logout failed; removing local credentials only", "logout_failed",
			logging.String(logging.FieldImpact, "the device may still be listed on the phone"),
		)
	}
	return c.WipeCredentials(ctx)
}

var _ session.Client = (*Client)(nil)
