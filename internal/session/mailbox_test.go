package session

import (
	"context"
	"testing"
	"time"
)

func TestMailboxIsFIFO(t *testing.T) {
	m := newMailbox()
	for i := range 5 {
		m.put(message{transition: &transition{count: i}})
	}
	if m.len() != 5 {
		t.Fatalf("expected 5 queued, got %d", m.len())
	}
	for i := range 5 {
		msg, ok := m.take(context.Background())
		if !ok || msg.transition.count != i {
			t.Fatalf("take %d: got %+v ok=%v", i, msg.transition, ok)
		}
	}
}

func TestMailboxClose(t *testing.T) {
	m := newMailbox()
	m.put(message{run: func() {}})
	m.close()
	if m.put(message{run: func() {}}) {
		t.Fatal("expected put after close to fail")
	}
	if _, ok := m.take(context.Background()); ok {
		t.Fatal("expected take after close to fail")
	}
}

func TestMailboxTakeHonorsContext(t *testing.T) {
	m := newMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := m.take(ctx); ok {
		t.Fatal("expected take on empty mailbox to stop with the context")
	}
}

func TestMailboxWakesWaiter(t *testing.T) {
	m := newMailbox()
	got := make(chan int, 1)
	go func() {
		msg, ok := m.take(context.Background())
		if ok {
			got <- msg.transition.count
		}
	}()
	time.Sleep(5 * time.Millisecond)
	m.put(message{transition: &transition{count: 7}})
	select {
	case n := <-got:
		if n != 7 {
			t.Fatalf("unexpected message %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never woke")
	}
}
