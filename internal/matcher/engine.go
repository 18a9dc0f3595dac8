package matcher

import (
	"fmt"
	"strings"
)

// Engine is the native matcher boundary. Every method reports a result code
// in place of a Go error; Service turns codes into errors.
//
// Implementations need not be safe for concurrent use. Service guarantees
// that at most one call is in flight per engine.
type Engine interface {
	SDKVersion() (SDKVersion, Code)
	ExtractTemplate(img *Image) (*Template, Code)
	CompressImage(img *Image, format ImageFormat) (*Image, Code)
	DecompressImage(img *Image) (*Image, Code)
	SaveImage(img *Image, path string) Code
	LoadImage(path string) (*Image, Code)
	SaveImageAsFIR(img *Image, path string) Code
	LoadImageFromFIR(path string) (*Image, Code)
	SaveTemplate(tpl *Template, path string) Code
	LoadTemplate(path string) (*Template, Code)
	SaveTemplateAsFMR(tpl *Template, path string) Code
	LoadTemplateFromFMR(path string) (*Template, Code)
	MatchTemplates(a, b *Template) (int, Code)
	SetMatchingLevel(level int) Code
	MatchingLevel() (int, Code)
	SingleEnrollment(images [3]*Image) (*Template, Code)
	MultiEnrollment(images [6]*Image) ([2]*Template, Code)
}

// NewEngine returns the engine registered under name. An empty name selects
// the digest engine.
func NewEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "digest":
		return NewDigestEngine(), nil
	}
	return nil, fmt.Errorf("%w: unknown matcher engine %q", ErrInvalidArgument, name)
}
