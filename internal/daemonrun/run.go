package daemonrun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"ledgerbot/internal/bot"
	"ledgerbot/internal/config"
	"ledgerbot/internal/control"
	"ledgerbot/internal/ledger"
	"ledgerbot/internal/logging"
	"ledgerbot/internal/notifications"
	"ledgerbot/internal/preflight"
	"ledgerbot/internal/reachability"
	"ledgerbot/internal/relay"
	"ledgerbot/internal/whatsapp"
)

// Options configures bot process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Stdin and Stdout back the terminal front end; they default to the
	// process streams.
	Stdin  *os.File
	Stdout io.Writer
}

// Run starts the bot and blocks until it is interrupted or reaches a
// terminal session state.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lock, err := bot.AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("ledgerbot-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		RunID:            runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update ledgerbot.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "ledgerbot-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.DataDir, "ledgerbot.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logConfigSnapshot(logger, cfg)
	for _, check := range []preflight.Result{
		preflight.CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		preflight.CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	} {
		if !check.Passed {
			return fmt.Errorf("%s: %s", check.Name, check.Detail)
		}
	}

	terminal := control.NewTerminal(opts.Stdout, opts.Stdin, cfg.PromptTimeout())
	var prompter relay.Prompter
	if cfg.Control.TerminalPrompt && control.IsInteractive(opts.Stdin) {
		prompter = terminal
	}
	rel := relay.New(logger, terminal)
	defer rel.Close()

	notifier := notifications.NewService(cfg)

	var current atomic.Pointer[bot.Bot]
	server := control.NewServer(control.ServerOptions{
		Listen: cfg.Control.Listen,
		Token:  cfg.Control.APIToken,
		Relay:  rel,
		Status: func(ctx context.Context) any {
			if b := current.Load(); b != nil {
				return b.Status(ctx)
			}
			return bot.Snapshot{State: "starting"}
		},
		Logger: logger,
	})
	if err := server.Start(signalCtx); err != nil {
		return reportStartupFailure(signalCtx, logger, rel, notifier, err)
	}
	defer server.Stop()

	store, err := ledger.Open(cfg.Paths.LedgerFile)
	if err != nil {
		return reportStartupFailure(signalCtx, logger, rel, notifier, err)
	}

	client, err := whatsapp.NewClient(signalCtx, whatsapp.Options{
		SessionDB:      cfg.Paths.SessionDB,
		DeviceName:     cfg.WhatsApp.DeviceName,
		PhoneNumber:    cfg.WhatsApp.PhoneNumber,
		ConnectTimeout: cfg.ConnectTimeout(),
	}, logger)
	if err != nil {
		return reportStartupFailure(signalCtx, logger, rel, notifier, err)
	}
	defer client.Close()

	b, err := bot.New(cfg, bot.Dependencies{
		Client:   client,
		Prober:   reachability.New(nil, logger),
		Ledger:   store,
		Relay:    rel,
		Notifier: notifier,
		Prompter: prompter,
	}, logger)
	if err != nil {
		return reportStartupFailure(signalCtx, logger, rel, notifier, err)
	}
	current.Store(b)

	logger.Info("ledgerbot started",
		logging.String(logging.FieldEventType, "bot_started"),
		logging.String("log_path", logPath),
		logging.String("control_addr", server.Addr()),
	)
	if err := b.Run(signalCtx); err != nil {
		return err
	}
	logger.Info("ledgerbot shutting down", logging.String(logging.FieldEventType, "bot_stopped"))
	return nil
}

func reportStartupFailure(ctx context.Context, logger *slog.Logger, rel *relay.Relay, notifier notifications.Service, err error) error {
	rel.Emit(relay.Event{Type: relay.EventError, Message: err.Error()})
	logging.ErrorWithContext(logger, "startup failed", "startup_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run 'ledgerbot doctor' to check paths and network access"),
	)
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if nerr := notifier.NotifyError(notifyCtx, err, "startup"); nerr != nil {
		logger.Warn("error notification failed", logging.Error(nerr))
	}
	return err
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "ledgerbot.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("ledger_file", cfg.Paths.LedgerFile),
		logging.String("session_db", cfg.Paths.SessionDB),
		logging.String(logging.FieldMode, cfg.WhatsApp.ConnectMode),
		logging.Bool("phone_number_present", cfg.WhatsApp.PhoneNumber != ""),
		logging.Bool("dispatch_enabled", cfg.Dispatch.Enabled),
		logging.String("recipient", cfg.WhatsApp.Recipient),
		logging.Int(logging.FieldMaxAttempts, cfg.Reconnect.MaxAttempts),
		logging.String("control_listen", cfg.Control.Listen),
		logging.Bool("control_token_present", cfg.Control.APIToken != ""),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
	)
}
