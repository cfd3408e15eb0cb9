// Package element provides the built-in pipeline elements: a signal
// generator, gain and passthrough transforms, a mixer, codec elements
// and the source/sink wrappers around stream devices.
//
// All elements follow the same cooperative contract: Step never blocks,
// starvation and backpressure are reported as outcomes and the
// scheduler decides when to revisit. When an element's bus owns its
// chunk storage, elements acquire and release blocks there, so a block
// pool keeps the steady state allocation-free.
package element

import (
	"fmt"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/databus"
)

// defaultChunkFrames is used when an element is not told how large its
// chunks should be.
const defaultChunkFrames = 512

// acquire obtains an output chunk: recycled from the bus when it
// allocates, fresh otherwise.
func acquire(bus flume.Bus, format flume.Format, frames int) (*flume.Chunk, error) {
	if a, ok := bus.(databus.Allocator); ok {
		return a.Acquire()
	}
	return flume.NewChunk(format, frames), nil
}

// release returns a consumed chunk to the bus it came from, when that
// bus owns its storage.
func release(bus flume.Bus, c *flume.Chunk) {
	if a, ok := bus.(databus.Allocator); ok {
		a.Release(c)
	}
}

// fit verifies an acquired block can hold frames of data. Pool blocks
// have a fixed size chosen at link construction, so a producer of
// larger chunks is a wiring fault, not a transient condition.
func fit(c *flume.Chunk, frames int) error {
	if c.Cap() < frames {
		return fmt.Errorf("output block holds %d frames, need %d", c.Cap(), frames)
	}
	return nil
}

// allocates reports whether the bus owns its chunk storage.
func allocates(bus flume.Bus) bool {
	_, ok := bus.(databus.Allocator)
	return ok
}
