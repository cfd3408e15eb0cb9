package databus

import (
	"sync/atomic"

	"github.com/flume-dsp/flume"
)

// Slot is a single-slot bus with producer-wins semantics: a send
// overwrites any unread chunk, so the consumer only ever observes the
// most recent value. Appropriate for control-style streams, such as
// metering or volume data, where stale chunks have no value.
type Slot struct {
	current atomic.Pointer[flume.Chunk]
	closed  atomic.Bool
}

// NewSlot returns an empty single-slot bus.
func NewSlot() *Slot {
	return &Slot{}
}

// TrySend stores the chunk, discarding an unread one if present. It only
// fails after Close.
func (s *Slot) TrySend(c *flume.Chunk) error {
	if s.closed.Load() {
		return flume.ErrClosed
	}
	s.current.Store(c)
	return nil
}

// TryReceive pops the current chunk, if any.
func (s *Slot) TryReceive() (*flume.Chunk, error) {
	if c := s.current.Swap(nil); c != nil {
		return c, nil
	}
	if s.closed.Load() {
		return nil, flume.ErrClosed
	}
	return nil, flume.ErrEmpty
}

// Len returns 1 when an unread chunk is present.
func (s *Slot) Len() int {
	if s.current.Load() != nil {
		return 1
	}
	return 0
}

// Cap returns the slot capacity, which is always 1.
func (s *Slot) Cap() int { return 1 }

// Close marks the slot as closed. An unread chunk remains receivable.
func (s *Slot) Close() { s.closed.Store(true) }

// Closed reports whether the slot was closed.
func (s *Slot) Closed() bool { return s.closed.Load() }
