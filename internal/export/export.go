package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
)

var (
	// ErrUnknownFormat reports an export format name that is not recognised.
	ErrUnknownFormat = errors.New("unknown export format")
	// ErrNothingToExport reports an export without the image or template it needs.
	ErrNothingToExport = errors.New("nothing to export")
	// ErrWrongKind reports an image-only format requested for a template.
	ErrWrongKind = errors.New("format does not apply to templates")
)

// Engine is the subset of the matcher service that writes export formats.
type Engine interface {
	ExtractTemplate(ctx context.Context, img *matcher.Image) (*matcher.Template, error)
	CompressImage(ctx context.Context, img *matcher.Image, format matcher.ImageFormat) (*matcher.Image, error)
	SaveImage(ctx context.Context, img *matcher.Image, path string) error
	SaveImageAsFIR(ctx context.Context, img *matcher.Image, path string) error
	SaveTemplate(ctx context.Context, tpl *matcher.Template, path string) error
	SaveTemplateAsFMR(ctx context.Context, tpl *matcher.Template, path string) error
}

// Exporter writes capture artifacts into one directory.
type Exporter struct {
	dir    string
	engine Engine
	logger *slog.Logger
	now    func() time.Time
}

// New returns an exporter writing under dir.
func New(dir string, engine Engine, logger *slog.Logger) (*Exporter, error) {
	if dir == "" {
		return nil, errors.New("export: directory required")
	}
	if engine == nil {
		return nil, errors.New("export: matcher engine required")
	}
	return &Exporter{
		dir:    dir,
		engine: engine,
		logger: logging.NewComponentLogger(logger, "export"),
		now:    time.Now,
	}, nil
}

// Dir returns the export directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Path returns where an export named base in format would be written.
func (e *Exporter) Path(format Format, base string) string {
	name := SanitizeBaseName(base)
	if name == "" {
		name = "scanmatch-" + e.now().UTC().Format("20060102T150405")
	}
	return filepath.Join(e.dir, name+"."+format.Extension())
}

// Image writes img in format and returns the file path. Template formats
// extract a template from img first.
func (e *Exporter) Image(ctx context.Context, format Format, base string, img *matcher.Image) (string, error) {
	if !format.valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if img == nil {
		return "", fmt.Errorf("export %s: %w: no image", format, ErrNothingToExport)
	}
	if format.IsTemplate() {
		tpl, err := e.engine.ExtractTemplate(ctx, img)
		if err != nil {
			return "", fmt.Errorf("export %s: extract template: %w", format, err)
		}
		return e.Template(ctx, format, base, tpl)
	}

	path, err := e.prepare(format, base)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatPNG:
		err = writePNG(path, img)
	case FormatWSQ:
		err = e.writeWSQ(ctx, path, img)
	case FormatFIR:
		err = e.engine.SaveImageAsFIR(ctx, img, path)
	case FormatIBSMImage:
		err = e.engine.SaveImage(ctx, img, path)
	}
	return e.finish(format, path, err)
}

// Template writes tpl in a template format and returns the file path.
func (e *Exporter) Template(ctx context.Context, format Format, base string, tpl *matcher.Template) (string, error) {
	if !format.valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if !format.IsTemplate() {
		return "", fmt.Errorf("export %s: %w", format, ErrWrongKind)
	}
	if tpl == nil {
		return "", fmt.Errorf("export %s: %w: no template", format, ErrNothingToExport)
	}
	path, err := e.prepare(format, base)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatFMR:
		err = e.engine.SaveTemplateAsFMR(ctx, tpl, path)
	case FormatIBSMTemplate:
		err = e.engine.SaveTemplate(ctx, tpl, path)
	}
	return e.finish(format, path, err)
}

func (e *Exporter) prepare(format Format, base string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("export %s: create directory: %w", format, err)
	}
	return e.Path(format, base), nil
}

func (e *Exporter) finish(format Format, path string, err error) (string, error) {
	if err != nil {
		e.logger.Warn("export failed",
			logging.String("format", format.String()),
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "export_failed"),
			logging.String(logging.FieldErrorHint, "the matcher engine may not support this format"),
			logging.String(logging.FieldImpact, "no file written"),
		)
		return "", fmt.Errorf("export %s: %w", format, err)
	}
	e.logger.Info("export written",
		logging.String("format", format.String()),
		logging.String("path", path),
		logging.String(logging.FieldEventType, "export_written"),
	)
	return path, nil
}

func (e *Exporter) writeWSQ(ctx context.Context, path string, img *matcher.Image) error {
	compressed, err := e.engine.CompressImage(ctx, img, matcher.FormatWSQ)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, compressed.Data)
}

// GrayImage converts a raw 8-bit capture into an image.Gray.
func GrayImage(img *matcher.Image) (*image.Gray, error) {
	if img == nil {
		return nil, ErrNothingToExport
	}
	if img.Format != matcher.FormatRaw || img.BitDepth != 8 {
		return nil, fmt.Errorf("%w: png export needs a raw 8-bit image, got %s/%d-bit",
			matcher.ErrInvalidArgument, img.Format, img.BitDepth)
	}
	w, h := int(img.Width), int(img.Height)
	if len(img.Data) < w*h {
		return nil, fmt.Errorf("%w: image data shorter than %dx%d", matcher.ErrInvalidArgument, w, h)
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	copy(gray.Pix, img.Data[:w*h])
	return gray, nil
}

func writePNG(path string, img *matcher.Image) error {
	gray, err := GrayImage(img)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
