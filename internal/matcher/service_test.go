package matcher_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
)

// stubEngine answers NotSupportedFunction for everything; tests embed it and
// override what they exercise.
type stubEngine struct{}

func (stubEngine) SDKVersion() (matcher.SDKVersion, matcher.Code) {
	return matcher.SDKVersion{}, matcher.NotSupportedFunction
}
func (stubEngine) ExtractTemplate(*matcher.Image) (*matcher.Template, matcher.Code) {
	return nil, matcher.NotSupportedFunction
}
func (stubEngine) CompressImage(*matcher.Image, matcher.ImageFormat) (*matcher.Image, matcher.Code) {
	return nil, matcher.NotSupportedFunction
}
func (stubEngine) DecompressImage(*matcher.Image) (*matcher.Image, matcher.Code) {
	return nil, matcher.NotSupportedFunction
}
func (stubEngine) SaveImage(*matcher.Image, string) matcher.Code { return matcher.NotSupportedFunction }
func (stubEngine) LoadImage(string) (*matcher.Image, matcher.Code) {
	return nil, matcher.NotSupportedFunction
}
func (stubEngine) SaveImageAsFIR(*matcher.Image, string) matcher.Code {
	return matcher.NotSupportedFunction
}
func (stubEngine) LoadImageFromFIR(string) (*matcher.Image, matcher.Code) {
	return nil, matcher.NotSupportedFunction
}
func (stubEngine) SaveTemplate(*matcher.Template, string) matcher.Code {
	return matcher.NotSupportedFunction
}
func (stubEngine) LoadTemplate(string) (*matcher.Template, matcher.Code) {
	return nil, matcher.NotSupportedFunction
}
func (stubEngine) SaveTemplateAsFMR(*matcher.Template, string) matcher.Code {
	return matcher.NotSupportedFunction
}
func (stubEngine) LoadTemplateFromFMR(string) (*matcher.Template, matcher.Code) {
	return nil, matcher.NotSupportedFunction
}
func (stubEngine) MatchTemplates(*matcher.Template, *matcher.Template) (int, matcher.Code) {
	return 0, matcher.NotSupportedFunction
}
func (stubEngine) SetMatchingLevel(int) matcher.Code { return matcher.NotSupportedFunction }
func (stubEngine) MatchingLevel() (int, matcher.Code) { return 0, matcher.NotSupportedFunction }
func (stubEngine) SingleEnrollment([3]*matcher.Image) (*matcher.Template, matcher.Code) {
	return nil, matcher.NotSupportedFunction
}
func (stubEngine) MultiEnrollment([6]*matcher.Image) ([2]*matcher.Template, matcher.Code) {
	return [2]*matcher.Template{}, matcher.NotSupportedFunction
}

// overlapEngine records how many calls are inside the engine at once.
type overlapEngine struct {
	stubEngine
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
}

func (e *overlapEngine) enter() {
	n := e.active.Add(1)
	for {
		seen := e.maxSeen.Load()
		if n <= seen || e.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	e.active.Add(-1)
	e.calls.Add(1)
}

func (e *overlapEngine) ExtractTemplate(*matcher.Image) (*matcher.Template, matcher.Code) {
	e.enter()
	return &matcher.Template{Minutiae: []byte{1}}, 0
}

func (e *overlapEngine) MatchTemplates(*matcher.Template, *matcher.Template) (int, matcher.Code) {
	e.enter()
	return 1, 0
}

func TestServiceSerializesEngineCalls(t *testing.T) {
	engine := &overlapEngine{}
	svc := matcher.NewService(engine, logging.NewNop())
	img := &matcher.Image{Width: 1, Height: 1, Data: []byte{0}}
	tpl := &matcher.Template{Minutiae: []byte{1}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := svc.ExtractTemplate(context.Background(), img); err != nil {
				t.Errorf("ExtractTemplate failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.MatchTemplates(context.Background(), tpl, tpl); err != nil {
				t.Errorf("MatchTemplates failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := engine.maxSeen.Load(); got != 1 {
		t.Fatalf("expected at most one call inside the engine, saw %d", got)
	}
	if got := engine.calls.Load(); got != 16 {
		t.Fatalf("expected 16 engine calls, got %d", got)
	}
}

func TestServiceRejectsMissingArgumentsBeforeEngine(t *testing.T) {
	engine := &overlapEngine{}
	svc := matcher.NewService(engine, logging.NewNop())
	ctx := context.Background()
	img := &matcher.Image{Width: 1, Height: 1, Data: []byte{0}}

	checks := map[string]func() error{
		"extract": func() error { _, err := svc.ExtractTemplate(ctx, nil); return err },
		"match first": func() error {
			_, err := svc.MatchTemplates(ctx, nil, &matcher.Template{})
			return err
		},
		"match second": func() error {
			_, err := svc.MatchTemplates(ctx, &matcher.Template{}, nil)
			return err
		},
		"single": func() error {
			_, err := svc.SingleEnrollment(ctx, [3]*matcher.Image{img, nil, img})
			return err
		},
		"multi": func() error {
			_, err := svc.MultiEnrollment(ctx, [6]*matcher.Image{img, img, img, img, img, nil})
			return err
		},
		"save path": func() error { return svc.SaveImage(ctx, img, " ") },
		"save template": func() error {
			return svc.SaveTemplate(ctx, nil, "/tmp/x")
		},
	}
	for name, check := range checks {
		t.Run(name, func(t *testing.T) {
			err := check()
			if !errors.Is(err, matcher.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			var mErr *matcher.Error
			if errors.As(err, &mErr) {
				t.Fatalf("precondition failure must not be an engine error: %v", err)
			}
		})
	}
	if engine.calls.Load() != 0 {
		t.Fatalf("engine should not be reached, got %d calls", engine.calls.Load())
	}
}

type codeEngine struct {
	stubEngine
	code     matcher.Code
	produced bool
}

func (e codeEngine) ExtractTemplate(*matcher.Image) (*matcher.Template, matcher.Code) {
	if e.produced {
		return &matcher.Template{}, e.code
	}
	return nil, e.code
}

func TestServiceMapsEngineCodes(t *testing.T) {
	img := &matcher.Image{Width: 1, Height: 1, Data: []byte{0}}
	tests := []struct {
		name     string
		code     matcher.Code
		produced bool
		want     matcher.Code
	}{
		{"known code", matcher.ExtractionFailed, false, matcher.ExtractionFailed},
		{"unknown code", matcher.Code(-4242), false, matcher.CommandFailed},
		{"success without result", 0, false, matcher.CommandFailed},
		{"not supported format", matcher.NotSupportedImageFormat, false, matcher.NotSupportedImageFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := matcher.NewService(codeEngine{code: tt.code, produced: tt.produced}, logging.NewNop())
			_, err := svc.ExtractTemplate(context.Background(), img)
			var mErr *matcher.Error
			if !errors.As(err, &mErr) {
				t.Fatalf("expected *matcher.Error, got %v", err)
			}
			if mErr.Code != tt.want {
				t.Fatalf("expected code %d, got %d", tt.want, mErr.Code)
			}
		})
	}

	svc := matcher.NewService(codeEngine{code: 0, produced: true}, logging.NewNop())
	if _, err := svc.ExtractTemplate(context.Background(), img); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestServiceWithoutEngine(t *testing.T) {
	svc := matcher.NewService(nil, logging.NewNop())
	_, err := svc.MatchingLevel(context.Background())
	if !errors.Is(err, matcher.ErrNoMatcherInstance) {
		t.Fatalf("expected NoMatcherInstance, got %v", err)
	}
}

type blockingEngine struct {
	stubEngine
	release chan struct{}
	entered chan struct{}
}

func (e *blockingEngine) MatchingLevel() (int, matcher.Code) {
	close(e.entered)
	<-e.release
	return 4, 0
}

func TestServiceWaitHonoursContext(t *testing.T) {
	engine := &blockingEngine{release: make(chan struct{}), entered: make(chan struct{})}
	svc := matcher.NewService(engine, logging.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := svc.MatchingLevel(context.Background())
		done <- err
	}()
	<-engine.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.ExtractTemplate(ctx, &matcher.Image{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while engine is busy, got %v", err)
	}

	close(engine.release)
	if err := <-done; err != nil {
		t.Fatalf("first call failed: %v", err)
	}
}

func TestSharedIsSingleton(t *testing.T) {
	if matcher.Shared() != matcher.Shared() {
		t.Fatal("expected the same shared service")
	}
	version, err := matcher.Shared().SDKVersion(context.Background())
	if err != nil {
		t.Fatalf("SDKVersion failed: %v", err)
	}
	if version.Product == "" {
		t.Fatal("expected product name")
	}
}
