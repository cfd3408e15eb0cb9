// Package databus provides the bounded channel implementations that
// connect pipeline elements: a single-slot cell with latest-value
// semantics, a FIFO ring for sample streams and a block pool that
// circulates pre-allocated chunks for allocation-free operation.
//
// Every bus follows a single-producer/single-consumer discipline: one
// goroutine sends, one receives. Under that discipline all variants are
// safe to share between two concurrently running elements without locks.
package databus

import "github.com/flume-dsp/flume"

// Allocator is implemented by buses that own their chunk storage. A
// producer bound to such a bus acquires recycled chunks instead of
// allocating, and a consumer returns them once fully consumed.
type Allocator interface {
	// Acquire hands out a cleared chunk. It fails with flume.ErrFull
	// when every block is in use.
	Acquire() (*flume.Chunk, error)
	// Release returns a consumed chunk to the allocator.
	Release(*flume.Chunk)
}
