package matcher_test

import (
	"errors"
	"testing"

	"scanmatch/internal/matcher"
)

func TestNewEngine(t *testing.T) {
	for _, name := range []string{"", "digest", " Digest "} {
		engine, err := matcher.NewEngine(name)
		if err != nil {
			t.Fatalf("NewEngine(%q): %v", name, err)
		}
		if _, ok := engine.(*matcher.DigestEngine); !ok {
			t.Fatalf("NewEngine(%q) returned %T", name, engine)
		}
	}
	if _, err := matcher.NewEngine("neural"); !errors.Is(err, matcher.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
