package testsupport

import (
	"testing"

	"scanmatch/internal/matcher"
)

// RawImage builds a raw 8-bit grayscale image whose pixels derive from seed.
// Images built from the same seed and size are byte-identical.
func RawImage(t testing.TB, width, height int, seed byte) *matcher.Image {
	t.Helper()

	if width <= 0 || height <= 0 {
		t.Fatalf("RawImage: invalid size %dx%d", width, height)
	}
	data := make([]byte, width*height)
	for i := range data {
		data[i] = seed + byte(i%251)
	}
	return &matcher.Image{
		Format:        matcher.FormatRaw,
		Impression:    matcher.ImpressionLivePlain,
		DeviceTech:    matcher.CaptureTechOptical,
		VendorID:      matcher.VendorIntegratedBiometrics,
		ScanSamplingX: matcher.DefaultResolutionPPI,
		ScanSamplingY: matcher.DefaultResolutionPPI,
		SamplingX:     matcher.DefaultResolutionPPI,
		SamplingY:     matcher.DefaultResolutionPPI,
		Width:         uint16(width),
		Height:        uint16(height),
		ScaleUnit:     matcher.ScaleInch,
		BitDepth:      8,
		Data:          data,
	}
}
