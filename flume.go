package flume

import "github.com/rs/xid"

// Bus is a bounded, ownership-transferring channel of chunks between two
// elements. Implementations live in the databus package: a single-slot
// cell, a FIFO ring and a pre-allocated block pool. Every bus has exactly
// one producer side and one consumer side.
type Bus interface {
	// TrySend pushes a chunk without blocking. ErrFull leaves chunk
	// ownership with the caller, ErrClosed rejects the send for good.
	TrySend(*Chunk) error
	// TryReceive pops a chunk without blocking. ErrEmpty means the
	// producer hasn't supplied data yet, ErrClosed means it never will.
	TryReceive() (*Chunk, error)
	// Len returns the number of chunks in flight.
	Len() int
	// Cap returns the fixed capacity of the bus.
	Cap() int
	// Close marks the bus as logically closed on the producer side.
	// Chunks already in flight remain receivable.
	Close()
	// Closed reports whether the bus was closed.
	Closed() bool
}

// Outcome reports what a single processing step achieved. Starved and
// Blocked express cooperative suspension: an element never waits inside
// Step, it returns and lets the scheduler revisit it.
type Outcome int

const (
	// Starved means no input was available.
	Starved Outcome = iota
	// Blocked means output could not be sent because the bus is full.
	Blocked
	// Progressed means the element consumed and/or produced data.
	Progressed
	// Complete means the element has no more data to produce: its
	// upstream closed or its own stream ended.
	Complete
)

func (o Outcome) String() string {
	switch o {
	case Starved:
		return "starved"
	case Blocked:
		return "blocked"
	case Progressed:
		return "progressed"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// Element is a unit of audio processing: source, sink, transform, mixer
// or decoder. One contract covers all of them so the same element code
// runs under the cooperative single-threaded driver and the concurrent
// one.
type Element interface {
	// Configure negotiates the sample format before steady-state
	// processing. format is the negotiated output format of the
	// upstream elements; sources receive the zero Format and declare
	// their own. Configure is called once per pipeline configuration
	// and must be safe to repeat with an identical format.
	Configure(format Format) error
	// Step performs one bounded unit of processing. It must not block:
	// missing input or a full output is reported through the outcome.
	Step() (Outcome, error)
	// Flush emits any buffered partial output, drains what remains on
	// the input side and closes the element's output buses.
	Flush() error
	// Reset returns the element to its post-configure condition,
	// discarding internal buffers.
	Reset() error
}

// Emitter is an element with an output port.
type Emitter interface {
	Element
	// BindOutput connects the element's output port to a bus.
	BindOutput(Bus)
	// OutputFormat returns the format the element emits. Valid after
	// Configure.
	OutputFormat() Format
}

// Receiver is an element with an input port. Elements with several input
// ports, such as mixers, accept multiple BindInput calls.
type Receiver interface {
	Element
	// BindInput connects a bus to the element's input port.
	BindInput(Bus)
}

// MeasureFunc captures metrics when a chunk is processed.
type MeasureFunc func(frames int)

// Metric creates per-element meters. The metric package provides an
// expvar-backed implementation.
type Metric interface {
	Meter(element string, sampleRate int) MeasureFunc
}

// newUID returns new unique id value.
func newUID() string {
	return xid.New().String()
}
