package flume

import (
	"fmt"
	"math"
)

// BitDepth is a bit depth of a PCM sample.
type BitDepth int

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// devider is used when int to float conversion is done.
func (b BitDepth) devider() float64 {
	switch b {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (b BitDepth) multiplier() float64 {
	switch b {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return 1<<23 - 2
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// Format describes a PCM sample stream: rate, depth, channel count and
// layout. Elements negotiate formats once, during pipeline configuration.
// A format mismatch between connected ports is a configuration error and
// never a runtime condition.
type Format struct {
	SampleRate  int
	Channels    int
	BitDepth    BitDepth
	Interleaved bool
	// NumFrames is the total number of frames in the stream.
	// Zero means the length is unknown or the stream is unbounded.
	NumFrames int64
}

// IsZero reports whether format carries no stream description.
func (f Format) IsZero() bool {
	return f.SampleRate == 0 && f.Channels == 0 && f.BitDepth == 0
}

// Validate checks that format describes a playable stream.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return &FormatError{Format: f, Reason: "sample rate must be positive"}
	}
	if f.Channels <= 0 {
		return &FormatError{Format: f, Reason: "channel count must be positive"}
	}
	switch f.BitDepth {
	case BitDepth8, BitDepth16, BitDepth24, BitDepth32:
	default:
		return &FormatError{Format: f, Reason: "unsupported bit depth"}
	}
	return nil
}

// Compatible reports whether two formats can be connected directly,
// without a conversion element in between. Layout and stream length are
// transport details and don't participate in the check.
func (f Format) Compatible(other Format) bool {
	return f.SampleRate == other.SampleRate &&
		f.Channels == other.Channels &&
		f.BitDepth == other.BitDepth
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dbit/%dch", f.SampleRate, f.BitDepth, f.Channels)
}

// FormatError is returned when an element cannot support a requested
// format or when formats on both ends of a link don't match. It is always
// surfaced during configuration, before the pipeline can run.
type FormatError struct {
	Element string
	Format  Format
	Reason  string
}

func (e *FormatError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("format %v rejected by %v: %v", e.Format, e.Element, e.Reason)
	}
	return fmt.Sprintf("format %v rejected: %v", e.Format, e.Reason)
}
