package databus

import (
	"sync/atomic"

	"github.com/flume-dsp/flume"
)

// Pool is a block-pool bus: a fixed set of chunks allocated once, then
// circulated by index between the producer and the consumer. After
// construction no transfer allocates, which makes this the mandatory
// variant for heap-free targets.
//
// The producer acquires a free block, fills it and sends it; the
// consumer receives it and releases it back once fully consumed. Both
// directions are index rings under the same single-producer/
// single-consumer discipline as Ring.
type Pool struct {
	blocks []*flume.Chunk
	index  map[*flume.Chunk]int
	// inflight carries filled block indices producer to consumer,
	// free carries consumed ones back.
	inflight indexRing
	free     indexRing
	closed   atomic.Bool
}

// NewPool allocates capacity blocks of frames samples per channel.
// It panics if capacity is not positive.
func NewPool(format flume.Format, capacity, frames int) *Pool {
	if capacity < 1 {
		panic("databus: pool capacity must be positive")
	}
	p := &Pool{
		blocks:   make([]*flume.Chunk, capacity),
		index:    make(map[*flume.Chunk]int, capacity),
		inflight: newIndexRing(capacity),
		free:     newIndexRing(capacity),
	}
	for i := range p.blocks {
		c := flume.NewChunk(format, frames)
		p.blocks[i] = c
		p.index[c] = i
		p.free.push(i)
	}
	return p
}

// Acquire hands the producer a cleared block. flume.ErrFull means every
// block is in flight or held by the consumer.
func (p *Pool) Acquire() (*flume.Chunk, error) {
	if p.closed.Load() {
		return nil, flume.ErrClosed
	}
	i, ok := p.free.pop()
	if !ok {
		return nil, flume.ErrFull
	}
	c := p.blocks[i]
	c.Clear()
	return c, nil
}

// Release returns a consumed block to the pool. Chunks that don't belong
// to the pool are ignored.
func (p *Pool) Release(c *flume.Chunk) {
	if i, ok := p.index[c]; ok {
		p.free.push(i)
	}
}

// TrySend transfers ownership of a pool block to the consumer side.
// It panics if the chunk doesn't belong to the pool: mixing foreign
// chunks into a block pool defeats its allocation guarantees.
func (p *Pool) TrySend(c *flume.Chunk) error {
	if p.closed.Load() {
		return flume.ErrClosed
	}
	i, ok := p.index[c]
	if !ok {
		panic("databus: chunk does not belong to pool")
	}
	if !p.inflight.push(i) {
		return flume.ErrFull
	}
	return nil
}

// TryReceive pops the oldest in-flight block. The consumer must Release
// it once fully consumed.
func (p *Pool) TryReceive() (*flume.Chunk, error) {
	i, ok := p.inflight.pop()
	if !ok {
		if p.closed.Load() {
			return nil, flume.ErrClosed
		}
		return nil, flume.ErrEmpty
	}
	return p.blocks[i], nil
}

// Len returns the number of chunks in flight.
func (p *Pool) Len() int { return p.inflight.len() }

// Cap returns the number of blocks in the pool.
func (p *Pool) Cap() int { return len(p.blocks) }

// Close marks the pool as closed. In-flight blocks remain receivable.
func (p *Pool) Close() { p.closed.Store(true) }

// Closed reports whether the pool was closed.
func (p *Pool) Closed() bool { return p.closed.Load() }

// indexRing is a fixed-size SPSC FIFO of block indices.
type indexRing struct {
	buf  []int32
	head *atomic.Uint64
	tail *atomic.Uint64
}

func newIndexRing(capacity int) indexRing {
	return indexRing{
		buf:  make([]int32, capacity),
		head: new(atomic.Uint64),
		tail: new(atomic.Uint64),
	}
}

func (r indexRing) push(i int) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() == uint64(len(r.buf)) {
		return false
	}
	r.buf[tail%uint64(len(r.buf))] = int32(i)
	r.tail.Store(tail + 1)
	return true
}

func (r indexRing) pop() (int, bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return 0, false
	}
	i := r.buf[head%uint64(len(r.buf))]
	r.head.Store(head + 1)
	return int(i), true
}

func (r indexRing) len() int {
	return int(r.tail.Load() - r.head.Load())
}
