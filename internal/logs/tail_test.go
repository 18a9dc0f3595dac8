package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scanmatch/internal/logs"
)

func TestLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), logs.CurrentName)
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	chunk, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(chunk.Lines) != 2 || chunk.Lines[0] != "b" || chunk.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
	if chunk.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", chunk.Offset)
	}

	all, err := logs.Last(path, 10)
	if err != nil || len(all.Lines) != 3 {
		t.Fatalf("Last(10) = %#v, %v", all.Lines, err)
	}
}

func TestLastMissingFile(t *testing.T) {
	chunk, err := logs.Last(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil || len(chunk.Lines) != 0 || chunk.Offset != 0 {
		t.Fatalf("Last(missing) = %+v, %v", chunk, err)
	}
}

func TestSinceLeavesPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), logs.CurrentName)
	if err := os.WriteFile(path, []byte("one\ntw"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	chunk, err := logs.Since(context.Background(), path, 0, 0)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "one" || chunk.Offset != 4 {
		t.Fatalf("unexpected chunk %+v", chunk)
	}
}

func TestSinceRestartsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), logs.CurrentName)
	if err := os.WriteFile(path, []byte("fresh\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	chunk, err := logs.Since(context.Background(), path, 1000, 0)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "fresh" {
		t.Fatalf("expected restart from the top, got %+v", chunk)
	}
}

func TestSinceWaitsForLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), logs.CurrentName)
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	first, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("later\n")
	}()

	chunk, err := logs.Since(context.Background(), path, first.Offset, 5*time.Second)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "later" {
		t.Fatalf("unexpected follow lines: %#v", chunk.Lines)
	}
}

func TestSinceStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), logs.CurrentName)
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := logs.Since(ctx, path, 2, time.Second); err == nil {
		t.Fatal("expected context error")
	}
}
