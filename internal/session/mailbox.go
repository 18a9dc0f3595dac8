package session

import (
	"context"
	"sync"
)

// mailbox is an unbounded FIFO. Handlers post follow-up messages from the
// loop goroutine itself, so put never blocks.
type mailbox struct {
	mu     sync.Mutex
	items  []message
	notify chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// put appends msg and reports whether the mailbox accepted it.
func (m *mailbox) put(msg message) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// take blocks until a message is available, the mailbox is closed or ctx is
// done.
func (m *mailbox) take(ctx context.Context) (message, bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return message{}, false
		}
		if len(m.items) > 0 {
			msg := m.items[0]
			m.items[0] = message{}
			m.items = m.items[1:]
			m.mu.Unlock()
			return msg, true
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-ctx.Done():
			return message{}, false
		}
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.items = nil
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
