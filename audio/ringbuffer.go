// Package audio plays the core's PCM output through oto.
package audio

import (
	"io"
	"sync"
)

// RingBuffer is a fixed-capacity byte FIFO read by the oto player. When a
// write does not fit, the oldest bytes are dropped so latency stays bounded.
// Read blocks until data arrives or the buffer is closed.
type RingBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	head   int // next read position
	size   int
	closed bool
}

// NewRingBuffer allocates a buffer holding up to capacity bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	rb := &RingBuffer{buf: make([]byte, capacity)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Write appends p, discarding the oldest data on overflow. It never blocks.
func (rb *RingBuffer) Write(p []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	capacity := len(rb.buf)
	if len(p) >= capacity {
		copy(rb.buf, p[len(p)-capacity:])
		rb.head, rb.size = 0, capacity
		rb.cond.Broadcast()
		return
	}
	if over := rb.size + len(p) - capacity; over > 0 {
		rb.head = (rb.head + over) % capacity
		rb.size -= over
	}
	tail := (rb.head + rb.size) % capacity
	n := copy(rb.buf[tail:], p)
	copy(rb.buf, p[n:])
	rb.size += len(p)
	rb.cond.Broadcast()
}

// Read implements io.Reader. After Close it drains what is left and then
// returns io.EOF.
func (rb *RingBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.size == 0 && !rb.closed {
		rb.cond.Wait()
	}
	if rb.size == 0 {
		return 0, io.EOF
	}

	n := min(len(p), rb.size)
	first := copy(p[:n], rb.buf[rb.head:])
	if first < n {
		copy(p[first:n], rb.buf)
	}
	rb.head = (rb.head + n) % len(rb.buf)
	rb.size -= n
	return n, nil
}

// Buffered returns the number of unread bytes.
func (rb *RingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Clear drops all unread bytes.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head, rb.size = 0, 0
}

// Close wakes blocked readers.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.cond.Broadcast()
}
