package config

const (
	defaultConfigPath             = "~/.config/scanmatch/config.toml"
	defaultDataDir                = "~/.local/share/scanmatch"
	defaultLogDir                 = "~/.local/share/scanmatch/logs"
	defaultExportDir              = "~/.local/share/scanmatch/exports"
	defaultSocketPath             = "~/.local/share/scanmatch/scanmatchd.sock"
	defaultSpoolDir               = "~/.local/share/scanmatch/spool"
	defaultScannerPollMillis      = 200
	defaultCaptureType            = "flat_single_finger"
	defaultMatchingLevel          = 4
	defaultStopPollIntervalMillis = 250
	defaultStopPollLimit          = 240
	defaultMessageHistory         = 50
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"

	// MinMatchingLevel and MaxMatchingLevel bound matcher.matching_level.
	MinMatchingLevel = 1
	MaxMatchingLevel = 7
)

// Scanner backends understood by the daemon.
const (
	BackendSpool = "spool"
)

// Matcher engines bundled with the daemon.
const (
	EngineDigest = "digest"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			ExportDir: defaultExportDir,
			Socket:    defaultSocketPath,
		},
		Scanner: Scanner{
			Backend:     BackendSpool,
			SpoolDir:    defaultSpoolDir,
			CaptureType: defaultCaptureType,
			Hotplug:     false,
			PollMillis:  defaultScannerPollMillis,
		},
		Matcher: Matcher{
			Engine:        EngineDigest,
			MatchingLevel: defaultMatchingLevel,
		},
		Session: Session{
			StopPollIntervalMillis: defaultStopPollIntervalMillis,
			StopPollLimit:          defaultStopPollLimit,
			MessageHistory:         defaultMessageHistory,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
