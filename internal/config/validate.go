package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateMatcher(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.Socket == "" {
		return errors.New("paths.socket must be set")
	}
	return nil
}

func (c *Config) validateScanner() error {
	switch c.Scanner.Backend {
	case BackendSpool:
		if c.Scanner.SpoolDir == "" {
			return errors.New("scanner.spool_dir must be set when scanner.backend is spool")
		}
	default:
		return fmt.Errorf("scanner.backend: unsupported value %q", c.Scanner.Backend)
	}
	if c.Scanner.DeviceIndex < 0 {
		return errors.New("scanner.device_index must be zero or positive")
	}
	if _, ok := captureTypes[c.Scanner.CaptureType]; !ok {
		return fmt.Errorf("scanner.capture_type: unsupported value %q", c.Scanner.CaptureType)
	}
	for _, id := range c.Scanner.USBVendorIDs {
		if len(id) != 4 {
			return fmt.Errorf("scanner.usb_vendor_ids: %q must be four hex digits", id)
		}
		if _, err := strconv.ParseUint(id, 16, 16); err != nil {
			return fmt.Errorf("scanner.usb_vendor_ids: %q is not hexadecimal", id)
		}
	}
	return nil
}

func (c *Config) validateMatcher() error {
	if c.Matcher.Engine != EngineDigest {
		return fmt.Errorf("matcher.engine: unsupported value %q", c.Matcher.Engine)
	}
	if c.Matcher.MatchingLevel < MinMatchingLevel || c.Matcher.MatchingLevel > MaxMatchingLevel {
		return fmt.Errorf("matcher.matching_level must be between %d and %d", MinMatchingLevel, MaxMatchingLevel)
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.StopPollLimit < 0 {
		return errors.New("session.stop_poll_limit must be zero (unbounded) or positive")
	}
	if c.Session.OpenTimeoutSeconds < 0 {
		return errors.New("session.open_timeout_seconds must be zero (disabled) or positive")
	}
	return nil
}

// captureTypes lists the names accepted by scanner.capture_type.
var captureTypes = map[string]struct{}{
	"flat_single_finger":   {},
	"rolled_single_finger": {},
	"flat_two_fingers":     {},
	"flat_four_fingers":    {},
}

// IsCaptureType reports whether name is a known capture type.
func IsCaptureType(name string) bool {
	_, ok := captureTypes[name]
	return ok
}
