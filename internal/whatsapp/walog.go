package whatsapp

import (
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"

	"ledgerbot/internal/logging"
)

// slogAdapter satisfies waLog.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func newWALogger(logger *slog.Logger, module string) waLog.Logger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &slogAdapter{logger: logger.With(logging.String("module", module))}
}

func (a *slogAdapter) Debugf(msg string, args ...interface{}) {
	a.logger.Debug(fmt.Sprintf(msg, args...))
}

func (a *slogAdapter) Infof(msg string, args ...interface{}) {
	a.logger.Info(fmt.Sprintf(msg, args...))
}

func (a *slogAdapter) Warnf(msg string, args ...interface{}) {
	a.logger.Warn(fmt.Sprintf(msg, args...), logging.String(logging.FieldEventType, "whatsmeow_warning"))
}

func (a *slogAdapter) Errorf(msg string, args ...interface{}) {
	a.logger.Error(fmt.Sprintf(msg, args...), logging.String(logging.FieldEventType, "whatsmeow_error"))
}

func (a *slogAdapter) Sub(module string) waLog.Logger {
	return &slogAdapter{logger: a.logger.With(logging.String("submodule", module))}
}
