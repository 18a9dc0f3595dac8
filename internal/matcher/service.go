package matcher

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"scanmatch/internal/logging"
)

// Service is the process-facing matcher API. It validates arguments before
// reaching the engine, serializes every engine call and maps result codes
// into the closed error taxonomy.
type Service struct {
	engine Engine
	logger *slog.Logger
	// gate admits one engine call at a time; a channel so waiting honours ctx.
	gate chan struct{}
}

// NewService wraps engine. A nil engine yields NoMatcherInstance on every call.
func NewService(engine Engine, logger *slog.Logger) *Service {
	return &Service{
		engine: engine,
		logger: logging.NewComponentLogger(logger, "matcher"),
		gate:   make(chan struct{}, 1),
	}
}

var shared struct {
	once sync.Once
	svc  *Service
}

// Shared returns the process-wide matcher backed by the digest engine. It is
// created on first use and lives until the process exits.
func Shared() *Service {
	shared.once.Do(func() {
		shared.svc = NewService(NewDigestEngine(), slog.Default())
	})
	return shared.svc
}

// SDKVersion reports the engine product and build.
func (s *Service) SDKVersion(ctx context.Context) (SDKVersion, error) {
	var version SDKVersion
	err := s.call(ctx, "sdk version", func(e Engine) (Code, bool) {
		var code Code
		version, code = e.SDKVersion()
		return code, version.Product != ""
	})
	return version, err
}

// ExtractTemplate derives a template from img.
func (s *Service) ExtractTemplate(ctx context.Context, img *Image) (*Template, error) {
	if img == nil {
		return nil, s.reject("extract template", "nil image")
	}
	var tpl *Template
	err := s.call(ctx, "extract template", func(e Engine) (Code, bool) {
		var code Code
		tpl, code = e.ExtractTemplate(img)
		return code, tpl != nil
	})
	return tpl, err
}

// CompressImage re-encodes img in format.
func (s *Service) CompressImage(ctx context.Context, img *Image, format ImageFormat) (*Image, error) {
	if img == nil {
		return nil, s.reject("compress image", "nil image")
	}
	var out *Image
	err := s.call(ctx, "compress image", func(e Engine) (Code, bool) {
		var code Code
		out, code = e.CompressImage(img, format)
		return code, out != nil
	})
	return out, err
}

// DecompressImage converts img back to raw pixels.
func (s *Service) DecompressImage(ctx context.Context, img *Image) (*Image, error) {
	if img == nil {
		return nil, s.reject("decompress image", "nil image")
	}
	var out *Image
	err := s.call(ctx, "decompress image", func(e Engine) (Code, bool) {
		var code Code
		out, code = e.DecompressImage(img)
		return code, out != nil
	})
	return out, err
}

// SaveImage writes img to path in the IBSM image container.
func (s *Service) SaveImage(ctx context.Context, img *Image, path string) error {
	if img == nil {
		return s.reject("save image", "nil image")
	}
	if strings.TrimSpace(path) == "" {
		return s.reject("save image", "empty file path")
	}
	return s.call(ctx, "save image", func(e Engine) (Code, bool) {
		return e.SaveImage(img, path), true
	})
}

// LoadImage reads an IBSM image container.
func (s *Service) LoadImage(ctx context.Context, path string) (*Image, error) {
	if strings.TrimSpace(path) == "" {
		return nil, s.reject("load image", "empty file path")
	}
	var img *Image
	err := s.call(ctx, "load image", func(e Engine) (Code, bool) {
		var code Code
		img, code = e.LoadImage(path)
		return code, img != nil
	})
	return img, err
}

// SaveImageAsFIR writes img as an ISO finger image record.
func (s *Service) SaveImageAsFIR(ctx context.Context, img *Image, path string) error {
	if img == nil {
		return s.reject("save image as fir", "nil image")
	}
	if strings.TrimSpace(path) == "" {
		return s.reject("save image as fir", "empty file path")
	}
	return s.call(ctx, "save image as fir", func(e Engine) (Code, bool) {
		return e.SaveImageAsFIR(img, path), true
	})
}

// LoadImageFromFIR reads an ISO finger image record.
func (s *Service) LoadImageFromFIR(ctx context.Context, path string) (*Image, error) {
	if strings.TrimSpace(path) == "" {
		return nil, s.reject("load image from fir", "empty file path")
	}
	var img *Image
	err := s.call(ctx, "load image from fir", func(e Engine) (Code, bool) {
		var code Code
		img, code = e.LoadImageFromFIR(path)
		return code, img != nil
	})
	return img, err
}

// SaveTemplate writes tpl to path in the IBSM template container.
func (s *Service) SaveTemplate(ctx context.Context, tpl *Template, path string) error {
	if tpl == nil {
		return s.reject("save template", "nil template")
	}
	if strings.TrimSpace(path) == "" {
		return s.reject("save template", "empty file path")
	}
	return s.call(ctx, "save template", func(e Engine) (Code, bool) {
		return e.SaveTemplate(tpl, path), true
	})
}

// LoadTemplate reads an IBSM template container.
func (s *Service) LoadTemplate(ctx context.Context, path string) (*Template, error) {
	if strings.TrimSpace(path) == "" {
		return nil, s.reject("load template", "empty file path")
	}
	var tpl *Template
	err := s.call(ctx, "load template", func(e Engine) (Code, bool) {
		var code Code
		tpl, code = e.LoadTemplate(path)
		return code, tpl != nil
	})
	return tpl, err
}

// SaveTemplateAsFMR writes tpl as an ISO finger minutiae record.
func (s *Service) SaveTemplateAsFMR(ctx context.Context, tpl *Template, path string) error {
	if tpl == nil {
		return s.reject("save template as fmr", "nil template")
	}
	if strings.TrimSpace(path) == "" {
		return s.reject("save template as fmr", "empty file path")
	}
	return s.call(ctx, "save template as fmr", func(e Engine) (Code, bool) {
		return e.SaveTemplateAsFMR(tpl, path), true
	})
}

// LoadTemplateFromFMR reads an ISO finger minutiae record.
func (s *Service) LoadTemplateFromFMR(ctx context.Context, path string) (*Template, error) {
	if strings.TrimSpace(path) == "" {
		return nil, s.reject("load template from fmr", "empty file path")
	}
	var tpl *Template
	err := s.call(ctx, "load template from fmr", func(e Engine) (Code, bool) {
		var code Code
		tpl, code = e.LoadTemplateFromFMR(path)
		return code, tpl != nil
	})
	return tpl, err
}

// MatchTemplates compares two templates. A non-zero score means the pair
// passed the current matching level.
func (s *Service) MatchTemplates(ctx context.Context, a, b *Template) (int, error) {
	if a == nil {
		return 0, s.reject("match templates", "nil first template")
	}
	if b == nil {
		return 0, s.reject("match templates", "nil second template")
	}
	var score int
	err := s.call(ctx, "match templates", func(e Engine) (Code, bool) {
		var code Code
		score, code = e.MatchTemplates(a, b)
		return code, true
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

// SetMatchingLevel changes the match threshold. The engine decides which
// levels are acceptable.
func (s *Service) SetMatchingLevel(ctx context.Context, level int) error {
	return s.call(ctx, "set matching level", func(e Engine) (Code, bool) {
		return e.SetMatchingLevel(level), true
	})
}

// MatchingLevel reports the current match threshold.
func (s *Service) MatchingLevel(ctx context.Context) (int, error) {
	var level int
	err := s.call(ctx, "get matching level", func(e Engine) (Code, bool) {
		var code Code
		level, code = e.MatchingLevel()
		return code, true
	})
	return level, err
}

// SingleEnrollment builds one enrollment template from three captures.
func (s *Service) SingleEnrollment(ctx context.Context, images [3]*Image) (*Template, error) {
	for i, img := range images {
		if img == nil {
			return nil, s.reject("single enrollment", "nil "+ordinals[i]+" image")
		}
	}
	var tpl *Template
	err := s.call(ctx, "single enrollment", func(e Engine) (Code, bool) {
		var code Code
		tpl, code = e.SingleEnrollment(images)
		return code, tpl != nil
	})
	return tpl, err
}

// MultiEnrollment builds two enrollment templates from six captures.
func (s *Service) MultiEnrollment(ctx context.Context, images [6]*Image) ([2]*Template, error) {
	var out [2]*Template
	for i, img := range images {
		if img == nil {
			return out, s.reject("multi enrollment", "nil "+ordinals[i]+" image")
		}
	}
	err := s.call(ctx, "multi enrollment", func(e Engine) (Code, bool) {
		var code Code
		out, code = e.MultiEnrollment(images)
		return code, out[0] != nil
	})
	if err != nil {
		return [2]*Template{}, err
	}
	return out, nil
}

var ordinals = [...]string{"first", "second", "third", "fourth", "fifth", "sixth"}

func (s *Service) reject(op, reason string) error {
	s.logger.Warn("matcher call rejected",
		logging.String("operation", op),
		logging.String("reason", reason),
		logging.String(logging.FieldEventType, "matcher_invalid_argument"),
		logging.String(logging.FieldErrorHint, "caller passed a missing argument"),
		logging.String(logging.FieldImpact, "operation was not attempted"),
	)
	return invalidArgument("%s: %s", op, reason)
}

// call runs fn with exclusive access to the engine. fn reports the engine
// code and whether a result object was produced.
func (s *Service) call(ctx context.Context, op string, fn func(Engine) (Code, bool)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case s.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.engine == nil {
		<-s.gate
		return s.handle(op, NoMatcherInstance, false)
	}
	code, produced := func() (Code, bool) {
		defer func() { <-s.gate }()
		return fn(s.engine)
	}()
	return s.handle(op, code, produced)
}

func (s *Service) handle(op string, code Code, produced bool) error {
	switch {
	case code == 0 && produced:
		return nil
	case code == 0:
		logging.ErrorWithContext(s.logger, "matcher returned no result", "matcher_no_result",
			logging.String("operation", op),
			logging.String(logging.FieldErrorHint, "engine reported success without output"),
		)
		return &Error{Code: CommandFailed}
	case !code.Known():
		logging.ErrorWithContext(s.logger, "matcher returned unknown code", "matcher_unknown_code",
			logging.String("operation", op),
			logging.Int64("raw_code", int64(code)),
			logging.String(logging.FieldErrorHint, "engine and taxonomy versions may differ"),
		)
		return FromCode(code)
	default:
		s.logger.Debug("matcher call failed",
			logging.String("operation", op),
			logging.Int64("code", int64(code)),
			logging.String("reason", code.String()),
		)
		return FromCode(code)
	}
}
