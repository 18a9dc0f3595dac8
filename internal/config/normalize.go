package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeScanner(); err != nil {
		return err
	}
	c.normalizeMatcher()
	c.normalizeSession()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.Socket) == "" {
		c.Paths.Socket = defaultSocketPath
	}
	if c.Paths.Socket, err = expandPath(c.Paths.Socket); err != nil {
		return fmt.Errorf("paths.socket: %w", err)
	}
	return nil
}

func (c *Config) normalizeScanner() error {
	c.Scanner.Backend = strings.ToLower(strings.TrimSpace(c.Scanner.Backend))
	if c.Scanner.Backend == "" {
		c.Scanner.Backend = BackendSpool
	}
	if strings.TrimSpace(c.Scanner.SpoolDir) == "" {
		c.Scanner.SpoolDir = defaultSpoolDir
	}
	var err error
	if c.Scanner.SpoolDir, err = expandPath(c.Scanner.SpoolDir); err != nil {
		return fmt.Errorf("scanner.spool_dir: %w", err)
	}
	c.Scanner.CaptureType = strings.ToLower(strings.TrimSpace(c.Scanner.CaptureType))
	if c.Scanner.CaptureType == "" {
		c.Scanner.CaptureType = defaultCaptureType
	}
	if c.Scanner.PollMillis <= 0 {
		c.Scanner.PollMillis = defaultScannerPollMillis
	}
	ids := make([]string, 0, len(c.Scanner.USBVendorIDs))
	for _, id := range c.Scanner.USBVendorIDs {
		id = strings.ToLower(strings.TrimSpace(id))
		id = strings.TrimPrefix(id, "0x")
		if id != "" {
			ids = append(ids, id)
		}
	}
	c.Scanner.USBVendorIDs = ids
	return nil
}

func (c *Config) normalizeMatcher() {
	c.Matcher.Engine = strings.ToLower(strings.TrimSpace(c.Matcher.Engine))
	if c.Matcher.Engine == "" {
		c.Matcher.Engine = EngineDigest
	}
}

func (c *Config) normalizeSession() {
	if c.Session.StopPollIntervalMillis <= 0 {
		c.Session.StopPollIntervalMillis = defaultStopPollIntervalMillis
	}
	if c.Session.MessageHistory <= 0 {
		c.Session.MessageHistory = defaultMessageHistory
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
