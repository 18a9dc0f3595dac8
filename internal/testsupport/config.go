package testsupport

import (
	"path/filepath"
	"testing"

	"scanmatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Paths.Socket = filepath.Join(base, "run", "scanmatchd.sock")
	cfgVal.Scanner.SpoolDir = filepath.Join(base, "spool")
	cfgVal.Scanner.Hotplug = false
	cfgVal.Scanner.PollMillis = 10
	cfgVal.Session.StopPollIntervalMillis = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStopPoll overrides the stop-capture poll interval and limit.
func WithStopPoll(intervalMillis, limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.StopPollIntervalMillis = intervalMillis
		b.cfg.Session.StopPollLimit = limit
	}
}

// WithCaptureType selects the capture type used by the session.
func WithCaptureType(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scanner.CaptureType = name
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
