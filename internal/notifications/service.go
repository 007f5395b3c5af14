package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ledgerbot/internal/config"
)

const userAgent = "ledgerbot/0.1.0"

// Service defines the notification surface exposed to the bot.
type Service interface {
	NotifyContactAdded(ctx context.Context, contactID, displayName string) error
	NotifyConnected(ctx context.Context, mode string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		contacts: cfg.Notifications.Contacts,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	contacts bool
	errors   bool
}

func (n *ntfyService) NotifyContactAdded(ctx context.Context, contactID, displayName string) error {
	if !n.contacts {
		return nil
	}
	contactID = strings.TrimSpace(contactID)
	displayName = strings.TrimSpace(displayName)
	message := fmt.Sprintf("New contact: %s", contactID)
	if displayName != "" {
		message = fmt.Sprintf("New contact: %s (%s)", displayName, contactID)
	}
	return n.send(ctx, payload{
		title:   "ledgerbot - Contact Added",
		message: message,
		tags:    []string{"ledgerbot", "contact", "added"},
	})
}

func (n *ntfyService) NotifyConnected(ctx context.Context, mode string) error {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		mode = "stored credentials"
	}
	return n.send(ctx, payload{
		title:    "ledgerbot - Connected",
		message:  fmt.Sprintf("WhatsApp session open (%s)", mode),
		tags:     []string{"ledgerbot", "session", "connected"},
		priority: "low",
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "ledgerbot - Error",
		message:  builder.String(),
		tags:     []string{"ledgerbot", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "ledgerbot - Test",
		message:  "Notification system test",
		tags:     []string{"ledgerbot", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyContactAdded(context.Context, string, string) error { return nil }
func (noopService) NotifyConnected(context.Context, string) error            { return nil }
func (noopService) NotifyError(context.Context, error, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
