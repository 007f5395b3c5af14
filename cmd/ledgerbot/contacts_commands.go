package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ledgerbot/internal/fileutil"
	"ledgerbot/internal/ledger"
)

func newContactsCommand(ctx *commandContext) *cobra.Command {
	contactsCmd := &cobra.Command{
		Use:   "contacts",
		Short: "Inspect the contact ledger",
	}
	contactsCmd.AddCommand(newContactsListCommand(ctx))
	contactsCmd.AddCommand(newContactsExportCommand(ctx))
	return contactsCmd
}

func (c *commandContext) openLedger() (*ledger.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return ledger.Open(cfg.Paths.LedgerFile)
}

func newContactsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			contacts, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if contacts == nil {
					contacts = []ledger.Contact{}
				}
				return writeJSON(cmd, contacts)
			}

			out := cmd.OutOrStdout()
			if len(contacts) == 0 {
				fmt.Fprintln(out, "No contacts recorded yet")
				return nil
			}
			rows := make([][]string, 0, len(contacts))
			for i, contact := range contacts {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					contact.ID,
					contact.DisplayName,
					contact.AddedAt.UTC().Format(ledger.TimestampLayout),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Contact", "Name", "Added"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d contacts in %s\n", len(contacts), store.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newContactsExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger CSV to stdout or a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			data, err := store.Export(cmd.Context())
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outPath)
			if target == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
				return fmt.Errorf("export ledger: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported ledger to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination file (defaults to stdout)")
	return cmd
}
