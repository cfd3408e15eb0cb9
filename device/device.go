// Package device defines the boundary between the pipeline and the
// outside world: hardware streams, files and test fixtures all hide
// behind the same reader/writer contract, so the engine never touches
// hardware or OS specifics directly.
//
// Both calls are non-blocking. A device that has no data or no room
// right now reports ErrWouldBlock, which the wrapping element turns
// into a scheduling outcome; anything else is a hard failure.
package device

import (
	"errors"
	"fmt"

	"github.com/flume-dsp/flume"
)

// ErrWouldBlock is reported by a device that cannot make progress right
// now. It is a scheduling signal, distinct from hard device errors.
var ErrWouldBlock = errors.New("device would block")

// Error is a hard failure at the hardware or OS boundary.
type Error struct {
	Device string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device %v: %v: %v", e.Device, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Reader is the adapter contract for input devices. ReadInto fills the
// chunk with captured frames and returns their count; io.EOF ends the
// stream.
type Reader interface {
	ReadInto(*flume.Chunk) (int, error)
}

// Writer is the adapter contract for output devices. WriteFrom plays or
// persists the chunk and returns the number of frames written.
type Writer interface {
	WriteFrom(*flume.Chunk) (int, error)
}

// Formatted is implemented by devices that know their stream format,
// such as file decoders. Source elements adopt it during configuration.
type Formatted interface {
	Format() flume.Format
}
