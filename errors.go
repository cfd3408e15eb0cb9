package flume

import (
	"errors"
	"fmt"
)

// Databus conditions. These are scheduling signals, not faults: the
// scheduler reacts to them by yielding and neither logs nor escalates
// them to the caller.
var (
	// ErrFull is returned by a send on a databus at capacity. Chunk
	// ownership stays with the caller.
	ErrFull = errors.New("databus full")

	// ErrEmpty is returned by a receive on a databus with no chunks.
	ErrEmpty = errors.New("databus empty")

	// ErrClosed is returned by a receive on a drained databus whose
	// producer flushed, and by any send after close.
	ErrClosed = errors.New("databus closed")
)

// ErrInvalidState is returned if a pipeline method cannot be executed in
// the pipeline's current lifecycle state.
var ErrInvalidState = errors.New("invalid state")

// ElementError wraps a processing fault of a single element. Whether it
// stops the pipeline or triggers an element reset is decided by the
// pipeline's error policy.
type ElementError struct {
	Element string
	Err     error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %v: %v", e.Element, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }
