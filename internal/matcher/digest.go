package matcher

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"sort"
)

const (
	digestScore        = 100
	defaultDigestLevel = 4
	minLevel           = 1
	maxLevel           = 7
)

// DigestEngine is the bundled reference engine. Its templates are content
// digests of the raw pixels, so two captures match only when they are
// byte-identical. It performs no biometric feature analysis and produces no
// compressed or ISO formats.
type DigestEngine struct {
	level int
}

// NewDigestEngine returns an engine at the default matching level.
func NewDigestEngine() *DigestEngine {
	return &DigestEngine{level: defaultDigestLevel}
}

func (d *DigestEngine) SDKVersion() (SDKVersion, Code) {
	return SDKVersion{Product: "scanmatch digest engine", File: "1.0.0"}, 0
}

func (d *DigestEngine) ExtractTemplate(img *Image) (*Template, Code) {
	if img.Format != FormatRaw {
		return nil, NotSupportedImageFormat
	}
	if err := img.Validate(); err != nil {
		return nil, ExtractionFailed
	}
	return digestTemplate(img), 0
}

func digestTemplate(img *Image) *Template {
	h := sha256.New()
	var dims [5]byte
	binary.BigEndian.PutUint16(dims[0:2], img.Width)
	binary.BigEndian.PutUint16(dims[2:4], img.Height)
	dims[4] = img.BitDepth
	h.Write(dims[:])
	h.Write(img.Data)
	return &Template{
		Version:      TemplateNew0,
		Finger:       img.Finger,
		Impression:   img.Impression,
		DeviceTech:   img.DeviceTech,
		VendorID:     img.VendorID,
		DeviceTypeID: img.DeviceTypeID,
		SamplingX:    img.SamplingX,
		SamplingY:    img.SamplingY,
		Width:        img.Width,
		Height:       img.Height,
		Minutiae:     h.Sum(nil),
	}
}

func (d *DigestEngine) CompressImage(img *Image, format ImageFormat) (*Image, Code) {
	if format == FormatRaw {
		return img.Clone(), 0
	}
	return nil, NotSupportedImageFormat
}

func (d *DigestEngine) DecompressImage(img *Image) (*Image, Code) {
	if img.Format != FormatRaw {
		return nil, NotSupportedImageFormat
	}
	return img.Clone(), 0
}

func (d *DigestEngine) SaveImage(img *Image, path string) Code {
	data, err := img.MarshalBinary()
	if err != nil {
		return InvalidParamValue
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return FileSave
	}
	return 0
}

func (d *DigestEngine) LoadImage(path string) (*Image, Code) {
	data, code := readFile(path)
	if code != 0 {
		return nil, code
	}
	img := &Image{}
	if err := img.UnmarshalBinary(data); err != nil {
		return nil, FileRead
	}
	return img, 0
}

func (d *DigestEngine) SaveImageAsFIR(*Image, string) Code { return NotSupportedFunction }

func (d *DigestEngine) LoadImageFromFIR(string) (*Image, Code) { return nil, NotSupportedFunction }

func (d *DigestEngine) SaveTemplate(tpl *Template, path string) Code {
	data, err := tpl.MarshalBinary()
	if err != nil {
		return InvalidParamValue
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return FileSave
	}
	return 0
}

func (d *DigestEngine) LoadTemplate(path string) (*Template, Code) {
	data, code := readFile(path)
	if code != 0 {
		return nil, code
	}
	tpl := &Template{}
	if err := tpl.UnmarshalBinary(data); err != nil {
		return nil, FileRead
	}
	return tpl, 0
}

func (d *DigestEngine) SaveTemplateAsFMR(*Template, string) Code { return NotSupportedFunction }

func (d *DigestEngine) LoadTemplateFromFMR(string) (*Template, Code) {
	return nil, NotSupportedFunction
}

func (d *DigestEngine) MatchTemplates(a, b *Template) (int, Code) {
	if len(a.Minutiae) == 0 || len(b.Minutiae) == 0 {
		return 0, ThereIsNoData
	}
	if bytes.Equal(a.Minutiae, b.Minutiae) {
		return digestScore, 0
	}
	return 0, 0
}

func (d *DigestEngine) SetMatchingLevel(level int) Code {
	if level < minLevel || level > maxLevel {
		return InvalidParamValue
	}
	d.level = level
	return 0
}

func (d *DigestEngine) MatchingLevel() (int, Code) {
	return d.level, 0
}

// SingleEnrollment requires every pair of the three captures to match.
func (d *DigestEngine) SingleEnrollment(images [3]*Image) (*Template, Code) {
	templates, code := d.extractAll(images[:])
	if code != 0 {
		return nil, code
	}
	for i := 1; i < len(templates); i++ {
		if !bytes.Equal(templates[0].Minutiae, templates[i].Minutiae) {
			return nil, EnrollmentFailed
		}
	}
	return templates[0], 0
}

// MultiEnrollment groups the six captures by digest. The largest group must
// hold at least three captures; the second template comes from the next
// group with at least two captures, or repeats the first.
func (d *DigestEngine) MultiEnrollment(images [6]*Image) ([2]*Template, Code) {
	var out [2]*Template
	templates, code := d.extractAll(images[:])
	if code != 0 {
		return out, code
	}
	type group struct {
		tpl   *Template
		count int
		first int
	}
	var groups []*group
	for i, tpl := range templates {
		found := false
		for _, g := range groups {
			if bytes.Equal(g.tpl.Minutiae, tpl.Minutiae) {
				g.count++
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, &group{tpl: tpl, count: 1, first: i})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].first < groups[j].first
	})
	if groups[0].count < 3 {
		return out, EnrollmentFailed
	}
	out[0] = groups[0].tpl
	out[1] = groups[0].tpl
	if len(groups) > 1 && groups[1].count >= 2 {
		out[1] = groups[1].tpl
	}
	return out, 0
}

func (d *DigestEngine) extractAll(images []*Image) ([]*Template, Code) {
	templates := make([]*Template, 0, len(images))
	for _, img := range images {
		tpl, code := d.ExtractTemplate(img)
		if code != 0 {
			return nil, code
		}
		templates = append(templates, tpl)
	}
	return templates, 0
}

func readFile(path string) ([]byte, Code) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return data, 0
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return nil, FileOpen
	default:
		return nil, FileRead
	}
}
