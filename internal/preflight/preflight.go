package preflight

import (
	"context"

	"ledgerbot/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the readiness checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, prober Prober) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckLedger(ctx, cfg.Paths.LedgerFile),
		CheckSessionStore(cfg.Paths.SessionDB),
	}
	if cfg.Dispatch.Enabled {
		results = append(results, CheckRecipient(cfg.WhatsApp.Recipient))
	}
	results = append(results, CheckReachability(ctx, prober, cfg.Reconnect.ProbeHost))
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
