package matcher

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ImageFormat identifies how Image.Data is encoded.
type ImageFormat uint8

const (
	FormatRaw ImageFormat = iota
	FormatWSQ
	FormatJPEG2000
	FormatPNG
)

func (f ImageFormat) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatWSQ:
		return "wsq"
	case FormatJPEG2000:
		return "jpeg2000"
	case FormatPNG:
		return "png"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// FingerPosition follows the ANSI/NIST finger position codes.
type FingerPosition uint8

const (
	FingerUnknown FingerPosition = iota
	FingerRightThumb
	FingerRightIndex
	FingerRightMiddle
	FingerRightRing
	FingerRightLittle
	FingerLeftThumb
	FingerLeftIndex
	FingerLeftMiddle
	FingerLeftRing
	FingerLeftLittle
)

// ImpressionType follows the ANSI/NIST impression codes.
type ImpressionType uint8

const (
	ImpressionLivePlain ImpressionType = iota
	ImpressionLiveRolled
	ImpressionNonLivePlain
	ImpressionNonLiveRolled
)

// CaptureTech identifies the sensor technology that produced an image.
type CaptureTech uint8

const (
	CaptureTechUnknown CaptureTech = 0
	CaptureTechOptical CaptureTech = 1
	CaptureTechFilm    CaptureTech = 12
)

// ScaleUnit qualifies the sampling fields of an image.
type ScaleUnit uint8

const (
	ScaleInch       ScaleUnit = 0x01
	ScaleCentimeter ScaleUnit = 0x02
)

// Vendor and device type identifiers carried in images and templates.
const (
	VendorUnreported           uint16 = 0x0000
	VendorIntegratedBiometrics uint16 = 0xABCD
	DeviceTypeUnknown          uint16 = 0x0000
	DeviceTypeCurve            uint16 = 0x1001
	DeviceTypeWatson           uint16 = 0x1005
	DeviceTypeSherlock         uint16 = 0x0010
	DeviceTypeWatsonMini       uint16 = 0x0020
	DeviceTypeColumbo          uint16 = 0x0030
	DeviceTypeHolmes           uint16 = 0x0040
)

// DefaultResolutionPPI is the sampling rate captures are requested at.
const DefaultResolutionPPI uint16 = 500

const (
	templateMagic          = "IBSMT"
	imageMagic             = "IBSMI"
	encodingRevision uint8 = 1
)

// Image is a captured fingerprint image with its acquisition metadata.
type Image struct {
	Format        ImageFormat
	Impression    ImpressionType
	Finger        FingerPosition
	DeviceTech    CaptureTech
	VendorID      uint16
	DeviceTypeID  uint16
	ScanSamplingX uint16
	ScanSamplingY uint16
	SamplingX     uint16
	SamplingY     uint16
	Width         uint16
	Height        uint16
	ScaleUnit     ScaleUnit
	BitDepth      uint8
	Data          []byte
}

// Validate checks that a raw image buffer matches its declared geometry.
func (img *Image) Validate() error {
	if img == nil {
		return invalidArgument("nil image")
	}
	if img.Width == 0 || img.Height == 0 {
		return invalidArgument("image has no dimensions")
	}
	if len(img.Data) == 0 {
		return invalidArgument("image has no data")
	}
	if img.Format == FormatRaw {
		depth := int(img.BitDepth)
		if depth == 0 {
			depth = 8
		}
		want := int(img.Width) * int(img.Height) * depth / 8
		if len(img.Data) != want {
			return invalidArgument("raw image is %d bytes, want %d for %dx%d@%d", len(img.Data), want, img.Width, img.Height, depth)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	if img == nil {
		return nil
	}
	cp := *img
	cp.Data = append([]byte(nil), img.Data...)
	return &cp
}

type imageHeader struct {
	Format        uint8
	Impression    uint8
	Finger        uint8
	DeviceTech    uint8
	VendorID      uint16
	DeviceTypeID  uint16
	ScanSamplingX uint16
	ScanSamplingY uint16
	SamplingX     uint16
	SamplingY     uint16
	Width         uint16
	Height        uint16
	ScaleUnit     uint8
	BitDepth      uint8
	DataLen       uint32
}

// MarshalBinary encodes the image in the IBSM image container.
func (img *Image) MarshalBinary() ([]byte, error) {
	if img == nil {
		return nil, invalidArgument("nil image")
	}
	var buf bytes.Buffer
	buf.WriteString(imageMagic)
	buf.WriteByte(encodingRevision)
	hdr := imageHeader{
		Format:        uint8(img.Format),
		Impression:    uint8(img.Impression),
		Finger:        uint8(img.Finger),
		DeviceTech:    uint8(img.DeviceTech),
		VendorID:      img.VendorID,
		DeviceTypeID:  img.DeviceTypeID,
		ScanSamplingX: img.ScanSamplingX,
		ScanSamplingY: img.ScanSamplingY,
		SamplingX:     img.SamplingX,
		SamplingY:     img.SamplingY,
		Width:         img.Width,
		Height:        img.Height,
		ScaleUnit:     uint8(img.ScaleUnit),
		BitDepth:      img.BitDepth,
		DataLen:       uint32(len(img.Data)),
	}
	if err := binary.Write(&buf, binary.BigEndian, hdr); err != nil {
		return nil, fmt.Errorf("encode image header: %w", err)
	}
	buf.Write(img.Data)
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes an IBSM image container.
func (img *Image) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	if err := readPreamble(r, imageMagic); err != nil {
		return err
	}
	var hdr imageHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return fmt.Errorf("decode image header: %w", err)
	}
	if int64(hdr.DataLen) != int64(r.Len()) {
		return fmt.Errorf("decode image: payload is %d bytes, header says %d", r.Len(), hdr.DataLen)
	}
	payload := make([]byte, hdr.DataLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("decode image payload: %w", err)
	}
	*img = Image{
		Format:        ImageFormat(hdr.Format),
		Impression:    ImpressionType(hdr.Impression),
		Finger:        FingerPosition(hdr.Finger),
		DeviceTech:    CaptureTech(hdr.DeviceTech),
		VendorID:      hdr.VendorID,
		DeviceTypeID:  hdr.DeviceTypeID,
		ScanSamplingX: hdr.ScanSamplingX,
		ScanSamplingY: hdr.ScanSamplingY,
		SamplingX:     hdr.SamplingX,
		SamplingY:     hdr.SamplingY,
		Width:         hdr.Width,
		Height:        hdr.Height,
		ScaleUnit:     ScaleUnit(hdr.ScaleUnit),
		BitDepth:      hdr.BitDepth,
		Data:          payload,
	}
	return nil
}

// TemplateVersion identifies the template encoding generation.
type TemplateVersion uint8

const (
	TemplateIBISDK0 TemplateVersion = 0
	TemplateIBISDK1 TemplateVersion = 1
	TemplateIBISDK2 TemplateVersion = 2
	TemplateIBISDK3 TemplateVersion = 3
	TemplateNew0    TemplateVersion = 16
)

// Template is an opaque feature set extracted from an image.
type Template struct {
	Version      TemplateVersion
	Finger       FingerPosition
	Impression   ImpressionType
	DeviceTech   CaptureTech
	VendorID     uint16
	DeviceTypeID uint16
	SamplingX    uint16
	SamplingY    uint16
	Width        uint16
	Height       uint16
	Minutiae     []byte
	Reserved     uint32
}

type templateHeader struct {
	Version      uint8
	Finger       uint8
	Impression   uint8
	DeviceTech   uint8
	VendorID     uint16
	DeviceTypeID uint16
	SamplingX    uint16
	SamplingY    uint16
	Width        uint16
	Height       uint16
	Reserved     uint32
	MinutiaeLen  uint32
}

// MarshalBinary encodes the template in the IBSM template container.
func (t *Template) MarshalBinary() ([]byte, error) {
	if t == nil {
		return nil, invalidArgument("nil template")
	}
	var buf bytes.Buffer
	buf.WriteString(templateMagic)
	buf.WriteByte(encodingRevision)
	hdr := templateHeader{
		Version:      uint8(t.Version),
		Finger:       uint8(t.Finger),
		Impression:   uint8(t.Impression),
		DeviceTech:   uint8(t.DeviceTech),
		VendorID:     t.VendorID,
		DeviceTypeID: t.DeviceTypeID,
		SamplingX:    t.SamplingX,
		SamplingY:    t.SamplingY,
		Width:        t.Width,
		Height:       t.Height,
		Reserved:     t.Reserved,
		MinutiaeLen:  uint32(len(t.Minutiae)),
	}
	if err := binary.Write(&buf, binary.BigEndian, hdr); err != nil {
		return nil, fmt.Errorf("encode template header: %w", err)
	}
	buf.Write(t.Minutiae)
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes an IBSM template container.
func (t *Template) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	if err := readPreamble(r, templateMagic); err != nil {
		return err
	}
	var hdr templateHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return fmt.Errorf("decode template header: %w", err)
	}
	if int64(hdr.MinutiaeLen) != int64(r.Len()) {
		return fmt.Errorf("decode template: payload is %d bytes, header says %d", r.Len(), hdr.MinutiaeLen)
	}
	minutiae := make([]byte, hdr.MinutiaeLen)
	if _, err := io.ReadFull(r, minutiae); err != nil {
		return fmt.Errorf("decode template payload: %w", err)
	}
	*t = Template{
		Version:      TemplateVersion(hdr.Version),
		Finger:       FingerPosition(hdr.Finger),
		Impression:   ImpressionType(hdr.Impression),
		DeviceTech:   CaptureTech(hdr.DeviceTech),
		VendorID:     hdr.VendorID,
		DeviceTypeID: hdr.DeviceTypeID,
		SamplingX:    hdr.SamplingX,
		SamplingY:    hdr.SamplingY,
		Width:        hdr.Width,
		Height:       hdr.Height,
		Reserved:     hdr.Reserved,
		Minutiae:     minutiae,
	}
	return nil
}

var errBadMagic = errors.New("unrecognised container")

func readPreamble(r *bytes.Reader, magic string) error {
	head := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(r, head); err != nil {
		return fmt.Errorf("read preamble: %w", err)
	}
	if string(head[:len(magic)]) != magic {
		return fmt.Errorf("read preamble: %w", errBadMagic)
	}
	if head[len(magic)] != encodingRevision {
		return fmt.Errorf("read preamble: unsupported revision %d", head[len(magic)])
	}
	return nil
}

// SDKVersion describes the engine build.
type SDKVersion struct {
	Product string `json:"product"`
	File    string `json:"file"`
}

func (v SDKVersion) String() string {
	return v.Product + " " + v.File
}
