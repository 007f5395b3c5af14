package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ledgerbot/internal/daemonrun"
	"ledgerbot/internal/session"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var listen string
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to WhatsApp and record new contacts",
		Long: "Run the bot in the foreground. The connection mode comes from --mode, the\n" +
			"config file or LEDGERBOT_CONNECT_MODE; otherwise it is chosen in the browser\n" +
			"page or at the terminal prompt, defaulting to qrcode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(mode) != "" {
				parsed, err := session.ParseMode(mode)
				if err != nil {
					return err
				}
				cfg.WhatsApp.ConnectMode = parsed.String()
			}
			if cmd.Flags().Changed("listen") {
				cfg.Control.Listen = strings.TrimSpace(listen)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Connection mode: qrcode or pairing")
	cmd.Flags().StringVar(&listen, "listen", "", "Control server address (empty disables it)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}
