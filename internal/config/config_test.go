package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"scanmatch/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "scanmatch")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.Socket != filepath.Join(wantData, "scanmatchd.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.Paths.Socket)
	}
	if cfg.Scanner.Backend != config.BackendSpool {
		t.Fatalf("unexpected backend: %q", cfg.Scanner.Backend)
	}
	if cfg.Matcher.MatchingLevel != 4 {
		t.Fatalf("unexpected matching level: %d", cfg.Matcher.MatchingLevel)
	}
	if cfg.StopPollInterval() != 250*time.Millisecond {
		t.Fatalf("unexpected stop poll interval: %s", cfg.StopPollInterval())
	}
	if cfg.OpenTimeout() != 0 {
		t.Fatalf("expected open timeout disabled by default, got %s", cfg.OpenTimeout())
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "enrollments.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.PIDPath() != filepath.Join(wantData, "scanmatchd.pid") {
		t.Fatalf("unexpected pid path: %q", cfg.PIDPath())
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `[paths]
data_dir = "~/scan-data"

[scanner]
capture_type = "ROLLED_SINGLE_FINGER"
usb_vendor_ids = ["0x113F", " 1c7a "]

[matcher]
matching_level = 7

[session]
stop_poll_limit = 0
open_timeout_seconds = 15

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "scan-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Scanner.CaptureType != "rolled_single_finger" {
		t.Fatalf("expected capture type to be lowercased, got %q", cfg.Scanner.CaptureType)
	}
	if got := strings.Join(cfg.Scanner.USBVendorIDs, ","); got != "113f,1c7a" {
		t.Fatalf("unexpected vendor ids: %q", got)
	}
	if cfg.Matcher.MatchingLevel != 7 {
		t.Fatalf("unexpected matching level: %d", cfg.Matcher.MatchingLevel)
	}
	if cfg.Session.StopPollLimit != 0 {
		t.Fatalf("expected unbounded stop poll, got %d", cfg.Session.StopPollLimit)
	}
	if cfg.OpenTimeout() != 15*time.Second {
		t.Fatalf("unexpected open timeout: %s", cfg.OpenTimeout())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[scanner]\nbogus = true\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "matching level too low",
			mutate: func(c *config.Config) { c.Matcher.MatchingLevel = 0 },
			want:   "matcher.matching_level",
		},
		{
			name:   "matching level too high",
			mutate: func(c *config.Config) { c.Matcher.MatchingLevel = 8 },
			want:   "matcher.matching_level",
		},
		{
			name:   "unknown backend",
			mutate: func(c *config.Config) { c.Scanner.Backend = "serial" },
			want:   "scanner.backend",
		},
		{
			name:   "unknown capture type",
			mutate: func(c *config.Config) { c.Scanner.CaptureType = "palm" },
			want:   "scanner.capture_type",
		},
		{
			name:   "bad vendor id",
			mutate: func(c *config.Config) { c.Scanner.USBVendorIDs = []string{"zzzz"} },
			want:   "scanner.usb_vendor_ids",
		},
		{
			name:   "negative poll limit",
			mutate: func(c *config.Config) { c.Session.StopPollLimit = -1 },
			want:   "session.stop_poll_limit",
		},
		{
			name:   "negative open timeout",
			mutate: func(c *config.Config) { c.Session.OpenTimeoutSeconds = -5 },
			want:   "session.open_timeout_seconds",
		},
		{
			name:   "negative device index",
			mutate: func(c *config.Config) { c.Scanner.DeviceIndex = -1 },
			want:   "scanner.device_index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ExportDir = filepath.Join(base, "exports")
	cfg.Paths.Socket = filepath.Join(base, "run", "scanmatchd.sock")
	cfg.Scanner.SpoolDir = filepath.Join(base, "spool")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{"data", "logs", "exports", "run", "spool"} {
		info, err := os.Stat(filepath.Join(base, dir))
		if err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be a directory", dir)
		}
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var parsed config.Config
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	defaults := config.Default()
	if parsed.Session.StopPollLimit != defaults.Session.StopPollLimit {
		t.Fatalf("sample stop_poll_limit %d differs from default %d", parsed.Session.StopPollLimit, defaults.Session.StopPollLimit)
	}
	if parsed.Matcher.MatchingLevel != defaults.Matcher.MatchingLevel {
		t.Fatalf("sample matching_level %d differs from default %d", parsed.Matcher.MatchingLevel, defaults.Matcher.MatchingLevel)
	}

	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("Load(sample) returned error: %v", err)
	}
}
