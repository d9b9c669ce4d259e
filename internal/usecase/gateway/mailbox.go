package gateway

import (
	"sync"

	"github.com/eapache/queue"
)

// mailbox is the unbounded FIFO in front of a session goroutine. put never
// blocks, so the router cannot be stalled by a slow session.
type mailbox struct {
	mu     sync.Mutex
	q      *queue.Queue
	signal chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{
		q:      queue.New(),
		signal: make(chan struct{}, 1),
	}
}

// put enqueues msg. It reports false once the mailbox is closed.
func (m *mailbox) put(msg any) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.q.Add(msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// next blocks until a message is available. It returns false after close;
// messages still queued at that point are discarded.
func (m *mailbox) next() (any, bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, false
		}
		if m.q.Length() > 0 {
			msg := m.q.Remove()
			m.mu.Unlock()
			return msg, true
		}
		m.mu.Unlock()
		<-m.signal
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.Length()
}
