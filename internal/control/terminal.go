package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"ledgerbot/internal/relay"
	"ledgerbot/internal/session"
)

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Terminal prints relay events and asks for the connection mode on a
// line-oriented console.
type Terminal struct {
	out     io.Writer
	in      io.Reader
	timeout time.Duration

	writeMu sync.Mutex

	linesOnce sync.Once
	lines     chan string
}

// NewTerminal returns a terminal front end. in may be nil when prompting is
// disabled.
func NewTerminal(out io.Writer, in io.Reader, timeout time.Duration) *Terminal {
	return &Terminal{out: out, in: in, timeout: timeout}
}

func (t *Terminal) Name() string { return "terminal" }

// Send renders ev as a single human-readable block.
func (t *Terminal) Send(_ context.Context, ev relay.Event) error {
	var text string
	switch ev.Type {
	case relay.EventQR:
		text = "Scan this QR code payload with WhatsApp (Linked devices):\n" + ev.QR
	case relay.EventPairingCode:
		text = "Enter this pairing code in WhatsApp (Linked devices > Link with phone number): " + ev.Code
	case relay.EventConnected:
		text = "Connected to WhatsApp."
	case relay.EventRunning:
		text = "Bot running; waiting for messages."
	case relay.EventRetry:
		text = fmt.Sprintf("Connection attempt %d/%d failed; retrying in %s.",
			ev.Attempt, ev.MaxAttempts, (time.Duration(ev.DelayMS) * time.Millisecond).String())
	case relay.EventError:
		text = "Error: " + ev.Message
	case relay.EventModeSelected:
		text = "Connection mode: " + ev.Mode
	default:
		return nil
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := fmt.Fprintln(t.out, text)
	return err
}

func (t *Terminal) Close(string) {}

// PromptMode asks for "qrcode" or "pairing" until a valid answer arrives or
// ctx is done. An empty answer selects qrcode.
func (t *Terminal) PromptMode(ctx context.Context) (session.Mode, error) {
	if t.in == nil {
		<-ctx.Done()
		return "", ctx.Err()
	}
	lines := t.startReader()
	for {
		t.writeMu.Lock()
		fmt.Fprintf(t.out, "Connection mode [qrcode/pairing] (qrcode after %s): ", t.timeout)
		t.writeMu.Unlock()

		select {
		case <-ctx.Done():
			t.writeMu.Lock()
			fmt.Fprintln(t.out)
			t.writeMu.Unlock()
			return "", ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return "", io.EOF
			}
			answer := strings.TrimSpace(line)
			if answer == "" {
				return session.ModeQRCode, nil
			}
			mode, err := session.ParseMode(answer)
			if err == nil {
				return mode, nil
			}
			t.writeMu.Lock()
			fmt.Fprintln(t.out, err.Error())
			t.writeMu.Unlock()
		}
	}
}

// startReader scans input lines on one goroutine for the life of the process
// so a cancelled prompt never leaves a competing reader behind.
func (t *Terminal) startReader() <-chan string {
	t.linesOnce.Do(func() {
		t.lines = make(chan string)
		go func() {
			defer close(t.lines)
			scanner := bufio.NewScanner(t.in)
			for scanner.Scan() {
				t.lines <- scanner.Text()
			}
		}()
	})
	return t.lines
}
