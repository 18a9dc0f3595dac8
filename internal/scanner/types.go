package scanner

import (
	"fmt"
	"strings"
)

// CaptureType selects the finger layout a capture expects.
type CaptureType int

const (
	CaptureNone CaptureType = iota
	CaptureRolledSingleFinger
	CaptureFlatSingleFinger
	CaptureFlatTwoFingers
	CaptureFlatFourFingers
)

var captureTypeNames = map[CaptureType]string{
	CaptureNone:               "none",
	CaptureRolledSingleFinger: "rolled_single_finger",
	CaptureFlatSingleFinger:   "flat_single_finger",
	CaptureFlatTwoFingers:     "flat_two_fingers",
	CaptureFlatFourFingers:    "flat_four_fingers",
}

var captureTypeDescriptions = map[CaptureType]string{
	CaptureNone:               "None",
	CaptureRolledSingleFinger: "Single finger rolled",
	CaptureFlatSingleFinger:   "Single finger flat",
	CaptureFlatTwoFingers:     "Two fingers flat",
	CaptureFlatFourFingers:    "Four fingers flat",
}

// CaptureTypes lists every capture type a device may offer, in probe order.
func CaptureTypes() []CaptureType {
	return []CaptureType{
		CaptureRolledSingleFinger,
		CaptureFlatSingleFinger,
		CaptureFlatTwoFingers,
		CaptureFlatFourFingers,
	}
}

// String returns the configuration name of the capture type.
func (t CaptureType) String() string {
	if name, ok := captureTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("capture_type(%d)", int(t))
}

// Description returns a human-readable label.
func (t CaptureType) Description() string {
	if desc, ok := captureTypeDescriptions[t]; ok {
		return desc
	}
	return t.String()
}

// Fingers is the number of fingers the capture type expects on the platen.
func (t CaptureType) Fingers() int {
	switch t {
	case CaptureFlatTwoFingers:
		return 2
	case CaptureFlatFourFingers:
		return 4
	case CaptureNone:
		return 0
	default:
		return 1
	}
}

// ParseCaptureType maps a configuration name to a CaptureType.
func ParseCaptureType(name string) (CaptureType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for t, n := range captureTypeNames {
		if t != CaptureNone && n == key {
			return t, nil
		}
	}
	return CaptureNone, fmt.Errorf("%w: unknown capture type %q", ErrNotSupported, name)
}

// Resolution is a capture sampling rate in pixels per inch.
type Resolution int

const Resolution500 Resolution = 500

// CaptureOption is a bit set of capture behaviours.
type CaptureOption uint32

const (
	OptionAutoContrast CaptureOption = 1 << iota
	OptionAutoCapture
	OptionIgnoreFingerCount
)

// Has reports whether every bit of o is set.
func (c CaptureOption) Has(o CaptureOption) bool {
	return c&o == o
}

// Property names a device setting.
type Property string

const (
	PropertyPowerSave Property = "enable_power_save_mode"
)

// FingerCountState reports how the finger count compares to the capture type.
type FingerCountState int

const (
	FingerCountOK FingerCountState = iota
	FingerCountTooMany
	FingerCountTooFew
	FingerCountNonFinger
)

func (s FingerCountState) String() string {
	switch s {
	case FingerCountTooMany:
		return "too many fingers"
	case FingerCountTooFew:
		return "too few fingers"
	case FingerCountNonFinger:
		return "non-finger"
	default:
		return "capturing"
	}
}

// FingerQuality is the per-finger quality indicator shown during capture.
type FingerQuality int

const (
	FingerNotPresent FingerQuality = iota
	FingerQualityGood
	FingerQualityFair
	FingerQualityPoor
)

func (q FingerQuality) String() string {
	switch q {
	case FingerQualityGood:
		return "good"
	case FingerQualityFair:
		return "fair"
	case FingerQualityPoor:
		return "poor"
	default:
		return "not present"
	}
}

// PlatenState reports whether fingers rest on the sensor.
type PlatenState int

const (
	PlatenClear PlatenState = iota
	PlatenHasFingers
)

// Description identifies an attached scanner.
type Description struct {
	Product string
	Serial  string
	Path    string
}

// String formats the description the way device lists show it.
func (d Description) String() string {
	if d.Serial == "" {
		return d.Product
	}
	return d.Product + " - " + d.Serial
}
