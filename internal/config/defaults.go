package config

const (
	defaultDataDir            = "~/.local/share/ledgerbot"
	defaultLogDir             = "~/.local/share/ledgerbot/logs"
	defaultLedgerFileName     = "contacts.csv"
	defaultSessionDBName      = "session.db"
	defaultRecipient          = "23791008288@s.whatsapp.net"
	defaultDeviceName         = "Custom App"
	defaultConnectTimeout     = 30
	defaultMaxAttempts        = 10
	defaultBackoffUnitMS      = 1000
	defaultProbeHost          = "web.whatsapp.com"
	defaultListen             = ":3000"
	defaultPromptTimeout      = 30
	defaultDispatchMinDelayMS = 1000
	defaultDispatchMaxDelayMS = 5000
	defaultDispatchFileName   = "contacts.csv"
	defaultDispatchCaption    = "Fichier CSV des contacts mis à jour."
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		WhatsApp: WhatsApp{
			Recipient:      defaultRecipient,
			DeviceName:     defaultDeviceName,
			ConnectTimeout: defaultConnectTimeout,
		},
		Reconnect: Reconnect{
			MaxAttempts:   defaultMaxAttempts,
			BackoffUnitMS: defaultBackoffUnitMS,
			ProbeHost:     defaultProbeHost,
		},
		Control: Control{
			Listen:         defaultListen,
			PromptTimeout:  defaultPromptTimeout,
			TerminalPrompt: true,
		},
		Dispatch: Dispatch{
			Enabled:    true,
			MinDelayMS: defaultDispatchMinDelayMS,
			MaxDelayMS: defaultDispatchMaxDelayMS,
			FileName:   defaultDispatchFileName,
			Caption:    defaultDispatchCaption,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Contacts:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
