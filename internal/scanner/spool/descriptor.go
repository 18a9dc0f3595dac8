package spool

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"scanmatch/internal/matcher"
	"scanmatch/internal/scanner"
)

const descriptorFile = "device.toml"

// descriptor is the optional device.toml inside a device directory.
type descriptor struct {
	Product      string   `toml:"product"`
	Serial       string   `toml:"serial"`
	DeviceType   string   `toml:"device_type"`
	CaptureTypes []string `toml:"capture_types"`
	// Quality pins the NFIQ score reported for every image. Zero computes it.
	Quality       int `toml:"quality"`
	OpenDelayMs   int `toml:"open_delay_ms"`
	ResolutionPPI int `toml:"resolution_ppi"`
}

var deviceTypes = map[string]uint16{
	"curve":       matcher.DeviceTypeCurve,
	"watson":      matcher.DeviceTypeWatson,
	"sherlock":    matcher.DeviceTypeSherlock,
	"watson_mini": matcher.DeviceTypeWatsonMini,
	"columbo":     matcher.DeviceTypeColumbo,
	"holmes":      matcher.DeviceTypeHolmes,
}

func loadDescriptor(dir string) (descriptor, error) {
	desc := descriptor{}
	data, err := os.ReadFile(filepath.Join(dir, descriptorFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return desc, fmt.Errorf("read device descriptor: %w", err)
	default:
		if err := toml.Unmarshal(data, &desc); err != nil {
			return desc, fmt.Errorf("parse device descriptor %s: %w", filepath.Join(dir, descriptorFile), err)
		}
	}
	return desc.normalize(filepath.Base(dir))
}

func (d descriptor) normalize(name string) (descriptor, error) {
	d.Product = strings.TrimSpace(d.Product)
	if d.Product == "" {
		d.Product = "Spool scanner " + name
	}
	d.Serial = strings.TrimSpace(d.Serial)
	if d.Serial == "" {
		d.Serial = "spool-" + name
	}
	d.DeviceType = strings.ToLower(strings.TrimSpace(d.DeviceType))
	if d.DeviceType == "" {
		d.DeviceType = "watson_mini"
	}
	if _, ok := deviceTypes[d.DeviceType]; !ok {
		return d, fmt.Errorf("%w: device type %q", scanner.ErrNotSupported, d.DeviceType)
	}
	for _, name := range d.CaptureTypes {
		if _, err := scanner.ParseCaptureType(name); err != nil {
			return d, err
		}
	}
	if d.Quality < 0 || d.Quality > 5 {
		return d, fmt.Errorf("quality must be between 0 and 5, got %d", d.Quality)
	}
	if d.OpenDelayMs < 0 {
		d.OpenDelayMs = 0
	}
	if d.ResolutionPPI <= 0 {
		d.ResolutionPPI = int(matcher.DefaultResolutionPPI)
	}
	return d, nil
}

func (d descriptor) description(dir string) scanner.Description {
	return scanner.Description{Product: d.Product, Serial: d.Serial, Path: dir}
}

func (d descriptor) deviceTypeID() uint16 {
	return deviceTypes[d.DeviceType]
}

// supports reports whether the device offers capture type t. An empty
// capture_types list offers every type.
func (d descriptor) supports(t scanner.CaptureType) bool {
	if t == scanner.CaptureNone {
		return false
	}
	if len(d.CaptureTypes) == 0 {
		return true
	}
	for _, name := range d.CaptureTypes {
		if parsed, err := scanner.ParseCaptureType(name); err == nil && parsed == t {
			return true
		}
	}
	return false
}
