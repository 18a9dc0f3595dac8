package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestStreamHandlerCarriesLoggerAttrs(t *testing.T) {
	hub := NewStreamHub(100)
	logger := WithStream(NewNop(), hub, slog.LevelInfo).
		With(slog.String(FieldComponent, "session")).
		With(slog.String(FieldActionID, "abc"))

	logger.Info("capturing", slog.String(FieldState, "capturing"), slog.String("extra", "value"))

	events, _ := hub.Tail(10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.Component != "session" || evt.ActionID != "abc" || evt.State != "capturing" {
		t.Fatalf("unexpected event fields: %+v", evt)
	}
	if evt.Fields["extra"] != "value" {
		t.Fatalf("expected extra field, got %v", evt.Fields)
	}
}

func TestStreamHandlerRespectsThreshold(t *testing.T) {
	hub := NewStreamHub(10)
	logger := WithStream(NewNop(), hub, slog.LevelWarn)

	logger.Info("ignored")
	logger.Debug("ignored too")
	logger.Warn("kept")

	events, seq := hub.Tail(10)
	if len(events) != 1 || events[0].Message != "kept" {
		t.Fatalf("expected only the warning, got %+v", events)
	}
	if seq != 1 {
		t.Fatalf("expected sequence 1, got %d", seq)
	}
}

func TestStreamHubEvictsOldest(t *testing.T) {
	hub := NewStreamHub(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		hub.Publish(LogEvent{Message: msg})
	}
	events, _ := hub.Tail(0)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Message != "b" || events[2].Message != "d" {
		t.Fatalf("unexpected order: %+v", events)
	}
	if events[0].Sequence != 2 {
		t.Fatalf("expected first sequence 2, got %d", events[0].Sequence)
	}
}

func TestStreamHubFetchSince(t *testing.T) {
	hub := NewStreamHub(10)
	for _, msg := range []string{"a", "b", "c"} {
		hub.Publish(LogEvent{Message: msg})
	}
	events, next, err := hub.Fetch(context.Background(), 1, 0, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(events) != 2 || events[0].Message != "b" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if next != 3 {
		t.Fatalf("expected next 3, got %d", next)
	}

	events, _, err = hub.Fetch(context.Background(), 3, 0, false)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no events past the head, got %+v (%v)", events, err)
	}
}

func TestStreamHubFetchWaitsForPublish(t *testing.T) {
	hub := NewStreamHub(10)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan []LogEvent, 1)
	go func() {
		events, _, _ := hub.Fetch(ctx, 0, 0, true)
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(LogEvent{Message: "scanner attached"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Message != "scanner attached" {
			t.Fatalf("unexpected events: %+v", events)
		}
	case <-time.After(time.Second):
		t.Fatal("Fetch did not wake up")
	}
}

func TestStreamHubFetchHonoursCancel(t *testing.T) {
	hub := NewStreamHub(10)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, _, err := hub.Fetch(ctx, 0, 0, true)
	if err == nil {
		t.Fatal("expected context error")
	}
}
