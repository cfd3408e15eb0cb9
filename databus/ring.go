package databus

import (
	"sync/atomic"

	"github.com/flume-dsp/flume"
)

// Ring is a fixed-capacity FIFO bus. It never overwrites: a send on a
// full ring fails with flume.ErrFull and the producer keeps the chunk.
// This is the variant for audio sample streams, where dropping a chunk
// corrupts the output.
//
// The ring is lock-free under the single-producer/single-consumer
// discipline: the producer owns the tail index, the consumer owns the
// head index.
type Ring struct {
	buf    []*flume.Chunk
	head   atomic.Uint64
	tail   atomic.Uint64
	closed atomic.Bool
}

// NewRing returns an empty ring holding up to capacity chunks.
// It panics if capacity is not positive.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		panic("databus: ring capacity must be positive")
	}
	return &Ring{buf: make([]*flume.Chunk, capacity)}
}

// TrySend appends the chunk to the ring. On flume.ErrFull the chunk
// ownership stays with the caller, which may retry, hold or drop it.
func (r *Ring) TrySend(c *flume.Chunk) error {
	if r.closed.Load() {
		return flume.ErrClosed
	}
	tail := r.tail.Load()
	if tail-r.head.Load() == uint64(len(r.buf)) {
		return flume.ErrFull
	}
	r.buf[tail%uint64(len(r.buf))] = c
	r.tail.Store(tail + 1)
	return nil
}

// TryReceive pops the oldest chunk.
func (r *Ring) TryReceive() (*flume.Chunk, error) {
	head := r.head.Load()
	if head == r.tail.Load() {
		if r.closed.Load() {
			return nil, flume.ErrClosed
		}
		return nil, flume.ErrEmpty
	}
	i := head % uint64(len(r.buf))
	c := r.buf[i]
	r.buf[i] = nil
	r.head.Store(head + 1)
	return c, nil
}

// Len returns the number of chunks in flight.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the fixed ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Close marks the ring as closed. Chunks in flight remain receivable;
// once drained, receives fail with flume.ErrClosed.
func (r *Ring) Close() { r.closed.Store(true) }

// Closed reports whether the ring was closed.
func (r *Ring) Closed() bool { return r.closed.Load() }
