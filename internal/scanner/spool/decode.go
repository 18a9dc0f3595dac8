package spool

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scanmatch/internal/matcher"
	"scanmatch/internal/scanner"
)

var errUnsupportedFile = errors.New("unsupported spool image")

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".pgm":
		return true
	}
	return false
}

// decodeFile reads a spool image as 8-bit grayscale.
func decodeFile(path string) (width, height int, pixels []byte, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("read spool image: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return 0, 0, nil, fmt.Errorf("decode png %s: %w", filepath.Base(path), err)
		}
		width, height, pixels = grayPixels(img)
	case ".pgm":
		width, height, pixels, err = decodePGM(data)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("decode pgm %s: %w", filepath.Base(path), err)
		}
	default:
		return 0, 0, nil, fmt.Errorf("%w: %s", errUnsupportedFile, filepath.Base(path))
	}
	if width == 0 || height == 0 || width > math.MaxUint16 || height > math.MaxUint16 {
		return 0, 0, nil, fmt.Errorf("%w: %dx%d", errUnsupportedFile, width, height)
	}
	return width, height, pixels, nil
}

func grayPixels(img image.Image) (int, int, []byte) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 0, width*height)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pixels = append(pixels, color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
		}
	}
	return width, height, pixels
}

// decodePGM reads a binary (P5) portable graymap with maxval up to 255.
func decodePGM(data []byte) (int, int, []byte, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	fields := make([]string, 0, 4)
	for len(fields) < 4 {
		token, err := pgmToken(r)
		if err != nil {
			return 0, 0, nil, err
		}
		fields = append(fields, token)
	}
	if fields[0] != "P5" {
		return 0, 0, nil, fmt.Errorf("%w: magic %q", errUnsupportedFile, fields[0])
	}
	width, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, nil, fmt.Errorf("pgm width: %w", err)
	}
	height, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, nil, fmt.Errorf("pgm height: %w", err)
	}
	maxVal, err := strconv.Atoi(fields[3])
	if err != nil {
		return 0, 0, nil, fmt.Errorf("pgm maxval: %w", err)
	}
	if width <= 0 || height <= 0 || maxVal <= 0 || maxVal > 255 {
		return 0, 0, nil, fmt.Errorf("%w: %dx%d maxval %d", errUnsupportedFile, width, height, maxVal)
	}
	pixels := make([]byte, width*height)
	if _, err := io.ReadFull(r, pixels); err != nil {
		return 0, 0, nil, fmt.Errorf("pgm pixels: %w", err)
	}
	if maxVal != 255 {
		for i, v := range pixels {
			pixels[i] = byte(int(v) * 255 / maxVal)
		}
	}
	return width, height, pixels, nil
}

// pgmToken returns the next header token and consumes the single whitespace
// byte that follows it.
func pgmToken(r *bufio.Reader) (string, error) {
	var token []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("pgm header: %w", err)
		}
		switch {
		case b == '#' && len(token) == 0:
			if _, err := r.ReadString('\n'); err != nil {
				return "", fmt.Errorf("pgm comment: %w", err)
			}
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			if len(token) > 0 {
				return string(token), nil
			}
		default:
			token = append(token, b)
		}
	}
}

func (d *Device) buildImage(width, height int, pixels []byte, t scanner.CaptureType) *matcher.Image {
	impression := matcher.ImpressionLivePlain
	if t == scanner.CaptureRolledSingleFinger {
		impression = matcher.ImpressionLiveRolled
	}
	ppi := uint16(d.desc.ResolutionPPI)
	return &matcher.Image{
		Format:        matcher.FormatRaw,
		Impression:    impression,
		Finger:        matcher.FingerUnknown,
		DeviceTech:    matcher.CaptureTechOptical,
		VendorID:      matcher.VendorIntegratedBiometrics,
		DeviceTypeID:  d.desc.deviceTypeID(),
		ScanSamplingX: ppi,
		ScanSamplingY: ppi,
		SamplingX:     matcher.DefaultResolutionPPI,
		SamplingY:     matcher.DefaultResolutionPPI,
		Width:         uint16(width),
		Height:        uint16(height),
		ScaleUnit:     matcher.ScaleInch,
		BitDepth:      8,
		Data:          pixels,
	}
}

// nfiqScore approximates an NFIQ class from pixel contrast: flat images
// score 5, high-contrast ridged images score 1.
func nfiqScore(img *matcher.Image) int {
	if len(img.Data) == 0 {
		return 5
	}
	var sum float64
	for _, v := range img.Data {
		sum += float64(v)
	}
	mean := sum / float64(len(img.Data))
	var variance float64
	for _, v := range img.Data {
		diff := float64(v) - mean
		variance += diff * diff
	}
	stddev := math.Sqrt(variance / float64(len(img.Data)))
	switch {
	case stddev >= 64:
		return 1
	case stddev >= 48:
		return 2
	case stddev >= 32:
		return 3
	case stddev >= 16:
		return 4
	default:
		return 5
	}
}

func fingerQualities(score, fingers int) []scanner.FingerQuality {
	q := scanner.FingerQualityPoor
	switch {
	case score <= 2:
		q = scanner.FingerQualityGood
	case score == 3:
		q = scanner.FingerQualityFair
	}
	out := make([]scanner.FingerQuality, fingers)
	for i := range out {
		out[i] = q
	}
	return out
}
