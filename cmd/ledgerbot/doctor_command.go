package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ledgerbot/internal/preflight"
	"ledgerbot/internal/reachability"
)

// newProber is replaced in tests to avoid real DNS lookups.
var newProber = func(logger *slog.Logger) preflight.Prober {
	return reachability.New(nil, logger)
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, ledger, session store, and network access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, newProber(ctx.logger()))

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "OK"
				if !r.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}
