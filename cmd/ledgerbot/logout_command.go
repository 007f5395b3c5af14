package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledgerbot/internal/bot"
	"ledgerbot/internal/whatsapp"
)

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Unlink the device and delete stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := bot.AcquireLock(cfg.LockPath())
			if err != nil {
				return fmt.Errorf("logout: %w (stop the running bot first)", err)
			}
			defer func() { _ = lock.Unlock() }()

			client, err := whatsapp.NewClient(cmd.Context(), whatsapp.Options{
				SessionDB:  cfg.Paths.SessionDB,
				DeviceName: cfg.WhatsApp.DeviceName,
			}, ctx.logger())
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			linked, err := client.Linked(cmd.Context())
			if err != nil {
				return err
			}
			if !linked {
				fmt.Fprintln(out, "No linked device; nothing to do")
				return nil
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Fprintln(out, "Device unlinked and credentials removed")
			return nil
		},
	}
}
