package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	ExportDir string `toml:"export_dir"`
	Socket    string `toml:"socket"`
}

// Scanner selects and tunes the fingerprint scanner backend.
type Scanner struct {
	Backend      string   `toml:"backend"`
	SpoolDir     string   `toml:"spool_dir"`
	DeviceIndex  int      `toml:"device_index"`
	CaptureType  string   `toml:"capture_type"`
	Hotplug      bool     `toml:"hotplug"`
	USBVendorIDs []string `toml:"usb_vendor_ids"`
	PollMillis   int      `toml:"poll_interval_ms"`
}

// Matcher selects the template engine and its matching threshold.
type Matcher struct {
	Engine        string `toml:"engine"`
	MatchingLevel int    `toml:"matching_level"`
}

// Session tunes the capture session controller.
type Session struct {
	StopPollIntervalMillis int `toml:"stop_poll_interval_ms"`
	// StopPollLimit bounds the stop-capture poll loop. Zero disables the bound.
	StopPollLimit      int `toml:"stop_poll_limit"`
	OpenTimeoutSeconds int `toml:"open_timeout_seconds"`
	MessageHistory     int `toml:"message_history"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scanmatch.
//
// Configuration sections by subsystem:
//   - Paths: data, log, export directories and the daemon socket
//   - Scanner: device backend, spool directory and USB hotplug filters
//   - Matcher: template engine and matching level
//   - Session: capture controller timing
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Scanner Scanner `toml:"scanner"`
	Matcher Matcher `toml:"matcher"`
	Session Session `toml:"session"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scanmatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The spool directory is only created for the spool backend.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ExportDir}
	if c.Scanner.Backend == BackendSpool {
		dirs = append(dirs, c.Scanner.SpoolDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if socketDir := filepath.Dir(c.Paths.Socket); socketDir != "" && socketDir != "." {
		if err := os.MkdirAll(socketDir, 0o755); err != nil {
			return fmt.Errorf("create socket directory %q: %w", socketDir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the enrollment database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "enrollments.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "scanmatchd.lock")
}

// PIDPath returns the file holding the running daemon's process ID.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "scanmatchd.pid")
}

// StopPollInterval returns the delay between stop-capture polls.
func (c *Config) StopPollInterval() time.Duration {
	return time.Duration(c.Session.StopPollIntervalMillis) * time.Millisecond
}

// OpenTimeout returns the open watchdog, or zero when disabled.
func (c *Config) OpenTimeout() time.Duration {
	return time.Duration(c.Session.OpenTimeoutSeconds) * time.Second
}

// ScannerPollInterval returns how often the spool backend scans for new images.
func (c *Config) ScannerPollInterval() time.Duration {
	return time.Duration(c.Scanner.PollMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Sample returns the embedded sample configuration.
func Sample() string {
	return sampleConfig
}
