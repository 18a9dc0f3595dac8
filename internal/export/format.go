package export

import (
	"fmt"
	"strings"
)

// Format is an export file format.
type Format int

const (
	FormatPNG Format = iota
	FormatWSQ
	FormatFIR
	FormatFMR
	FormatIBSMImage
	FormatIBSMTemplate
)

var formatInfo = [...]struct {
	name, ext, label string
	template         bool
}{
	FormatPNG:          {"png", "png", "Portable Network Graphics", false},
	FormatWSQ:          {"wsq", "wsq", "Wavelet Scalar Quantization", false},
	FormatFIR:          {"fir", "fir", "Fingerprint Image Record", false},
	FormatFMR:          {"fmr", "fmr", "Fingerprint Minutiae Record", true},
	FormatIBSMImage:    {"ibsm-image", "ibsm_image", "IBSM image", false},
	FormatIBSMTemplate: {"ibsm-template", "ibsm_template", "IBSM template", true},
}

// Formats lists every export format. Image exports accept all of them.
func Formats() []Format {
	return []Format{FormatPNG, FormatWSQ, FormatFIR, FormatFMR, FormatIBSMImage, FormatIBSMTemplate}
}

// TemplateFormats lists the formats a template can be written in.
func TemplateFormats() []Format {
	return []Format{FormatFMR, FormatIBSMTemplate}
}

func (f Format) valid() bool {
	return f >= 0 && int(f) < len(formatInfo)
}

func (f Format) String() string {
	if f.valid() {
		return formatInfo[f].name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Extension is the file extension without the dot.
func (f Format) Extension() string {
	if f.valid() {
		return formatInfo[f].ext
	}
	return "bin"
}

// Label is a human-readable format name.
func (f Format) Label() string {
	if f.valid() {
		return formatInfo[f].label
	}
	return f.String()
}

// IsTemplate reports whether the format holds a template rather than an image.
func (f Format) IsTemplate() bool {
	return f.valid() && formatInfo[f].template
}

// ParseFormat accepts a format name or its file extension.
func ParseFormat(name string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, ".")
	for _, f := range Formats() {
		if key == f.String() || key == f.Extension() {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}
