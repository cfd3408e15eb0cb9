// Package mem provides in-memory stream devices. They back tests and
// short-lived pipelines that read from or write to buffers instead of
// hardware or files.
package mem

import (
	"io"
	"sync"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/device"
)

// Source replays a buffer of samples chunk by chunk.
type Source struct {
	format flume.Format
	data   [][]float64
	pos    int

	// Throttle makes every other read report device.ErrWouldBlock,
	// exercising starvation paths.
	Throttle bool
	blocked  bool
}

// NewSource copies the given non-interleaved samples into a source.
func NewSource(format flume.Format, samples [][]float64) *Source {
	data := make([][]float64, len(samples))
	for i := range samples {
		data[i] = append([]float64(nil), samples[i]...)
	}
	return &Source{format: format, data: data}
}

// Format implements device.Formatted.
func (s *Source) Format() flume.Format { return s.format }

// ReadInto implements device.Reader. It fills the chunk from the buffer
// and returns io.EOF once the buffer is exhausted.
func (s *Source) ReadInto(c *flume.Chunk) (int, error) {
	if s.Throttle {
		s.blocked = !s.blocked
		if s.blocked {
			return 0, device.ErrWouldBlock
		}
	}
	total := 0
	if len(s.data) > 0 {
		total = len(s.data[0])
	}
	if s.pos >= total {
		return 0, io.EOF
	}
	n := c.Cap()
	if rem := total - s.pos; n > rem {
		n = rem
	}
	c.SetLen(n)
	for ch := range s.data {
		copy(c.Channel(ch), s.data[ch][s.pos:s.pos+n])
	}
	s.pos += n
	if s.pos >= total {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker so the source can be rewound on reset. Only
// rewinding to the start is supported.
func (s *Source) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart {
		s.pos = 0
		s.blocked = false
		return 0, nil
	}
	return int64(s.pos), &device.Error{Device: "mem", Op: "seek", Err: io.ErrUnexpectedEOF}
}

// Sink collects written samples into a growing buffer.
type Sink struct {
	mu     sync.Mutex
	format flume.Format
	data   [][]float64
	closed bool

	// Throttle makes every other write report device.ErrWouldBlock,
	// exercising backpressure paths.
	Throttle bool
	blocked  bool
}

// NewSink returns an empty sink.
func NewSink() *Sink { return &Sink{} }

// WriteFrom implements device.Writer.
func (s *Sink) WriteFrom(c *flume.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Throttle {
		s.blocked = !s.blocked
		if s.blocked {
			return 0, device.ErrWouldBlock
		}
	}
	if s.closed {
		return 0, &device.Error{Device: "mem", Op: "write", Err: flume.ErrClosed}
	}
	if s.data == nil {
		s.format = c.Format()
		s.data = make([][]float64, c.Format().Channels)
	}
	for ch := range s.data {
		s.data[ch] = append(s.data[ch], c.Channel(ch)...)
	}
	return c.Len(), nil
}

// Close implements io.Closer.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Samples returns everything written so far, one slice per channel.
func (s *Sink) Samples() [][]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]float64, len(s.data))
	for i := range s.data {
		out[i] = append([]float64(nil), s.data[i]...)
	}
	return out
}

// Frames returns the number of frames written so far.
func (s *Sink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return 0
	}
	return len(s.data[0])
}

// RawSource replays a byte buffer chunk by chunk, feeding decoders.
type RawSource struct {
	data      []byte
	pos       int
	chunkSize int
}

// NewRawSource wraps the given bytes. Each read delivers at most
// chunkSize bytes; zero means deliver everything at once.
func NewRawSource(data []byte, chunkSize int) *RawSource {
	return &RawSource{data: data, chunkSize: chunkSize}
}

// ReadInto implements device.Reader for encoded streams.
func (s *RawSource) ReadInto(c *flume.Chunk) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := len(s.data) - s.pos
	if s.chunkSize > 0 && n > s.chunkSize {
		n = s.chunkSize
	}
	c.PutRaw(s.data[s.pos : s.pos+n])
	s.pos += n
	if s.pos >= len(s.data) {
		return n, io.EOF
	}
	return n, nil
}

// RawSink collects written encoded bytes.
type RawSink struct {
	mu   sync.Mutex
	data []byte
}

// NewRawSink returns an empty raw sink.
func NewRawSink() *RawSink { return &RawSink{} }

// WriteFrom implements device.Writer for encoded streams.
func (s *RawSink) WriteFrom(c *flume.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, c.Raw()...)
	return len(c.Raw()), nil
}

// Bytes returns everything written so far.
func (s *RawSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}
