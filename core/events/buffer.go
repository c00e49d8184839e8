package events

import "sync"

// Buffer accumulates events during an instruction execution so they can be
// published only after the execution commits. A failed execution drains the
// buffer without forwarding anything.
type Buffer struct {
	mu      sync.Mutex
	pending []Event
}

// NewBuffer returns an empty event buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, evt)
}

// Drain returns the buffered events and resets the buffer.
func (b *Buffer) Drain() []Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.pending
	b.pending = nil
	return drained
}
