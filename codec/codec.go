// Package codec defines the contracts between pipeline elements and
// audio codec implementations. A decoder turns encoded chunks into
// raw-sample chunks, an encoder does the reverse. Codec failures carry
// a kind, so elements can tell ordinary starvation for more input from
// genuinely broken or unsupported bitstreams.
package codec

import (
	"errors"
	"fmt"

	"github.com/flume-dsp/flume"
)

// Kind classifies a codec failure.
type Kind int

const (
	// NeedMoreInput means the codec consumed input without producing
	// output and wants more data. A scheduling signal, not a fault.
	NeedMoreInput Kind = iota
	// Unsupported means the bitstream uses a feature or format the
	// codec cannot handle.
	Unsupported
	// Corrupt means the bitstream is malformed.
	Corrupt
)

func (k Kind) String() string {
	switch k {
	case NeedMoreInput:
		return "need more input"
	case Unsupported:
		return "unsupported"
	case Corrupt:
		return "corrupt"
	}
	return "unknown"
}

// Error is a codec failure with a kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNeedMoreInput reports whether err is a codec error asking for more
// input.
func ErrNeedMoreInput(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == NeedMoreInput
}

// Decoder transforms encoded chunks into raw-sample chunks.
type Decoder interface {
	// OutputFormat returns the format of decoded output.
	OutputFormat() flume.Format
	// MaxFrames returns the largest number of frames a single Decode
	// call can produce. Callers size output chunks from it; a chunk
	// with less capacity makes Decode fail instead of truncating.
	MaxFrames() int
	// Decode consumes the raw payload of in and fills out with
	// samples. Failures are *Error values: NeedMoreInput when the
	// payload held no complete frame, Unsupported or Corrupt for bad
	// bitstreams.
	Decode(in, out *flume.Chunk) error
	// Reset discards buffered codec state.
	Reset() error
}

// Encoder transforms raw-sample chunks into encoded chunks.
type Encoder interface {
	// Encode consumes the samples of in and fills the raw payload of
	// out.
	Encode(in, out *flume.Chunk) error
	// Reset discards buffered codec state.
	Reset() error
}
