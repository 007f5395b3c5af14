// Package reachability gates connection attempts on a DNS lookup of the
// messaging service host.
package reachability

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"ledgerbot/internal/logging"
)

// DefaultHost is resolved when no probe host is configured.
const DefaultHost = "web.whatsapp.com"

const defaultTimeout = 10 * time.Second

// Resolver is the subset of *net.Resolver used by the probe.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Prober resolves a host name before each connection attempt.
type Prober struct {
	resolver Resolver
	timeout  time.Duration
	logger   *slog.Logger
}

// New returns a Prober. A nil resolver uses net.DefaultResolver.
func New(resolver Resolver, logger *slog.Logger) *Prober {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Prober{
		resolver: resolver,
		timeout:  defaultTimeout,
		logger:   logging.NewComponentLogger(logger, "reachability"),
	}
}

// Probe reports whether host resolves to at least one address. Lookup errors
// are logged and reported as false; Probe never fails.
func (p *Prober) Probe(ctx context.Context, host string) bool {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultHost
	}
	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addrs, err := p.resolver.LookupHost(lookupCtx, host)
	if err != nil {
		p.logger.Warn("dns probe failed",
			logging.String("host", host),
			logging.Error(err),
			logging.String(logging.FieldEventType, "probe_failed"),
			logging.String(logging.FieldErrorHint, "check network connectivity and DNS"),
			logging.String(logging.FieldImpact, "connection attempt postponed"),
		)
		return false
	}
	if len(addrs) == 0 {
		p.logger.Warn("dns probe returned no addresses",
			logging.String("host", host),
			logging.String(logging.FieldEventType, "probe_failed"),
			logging.String(logging.FieldErrorHint, "check DNS configuration"),
			logging.String(logging.FieldImpact, "connection attempt postponed"),
		)
		return false
	}
	p.logger.Debug("dns probe succeeded", logging.String("host", host), logging.Int("addresses", len(addrs)))
	return true
}
