package element

import (
	"errors"
	"math"

	"github.com/flume-dsp/flume"
)

// Sine generates a sine wave on every channel of its format. With a
// frame limit it emits a bounded stream ending in a Last chunk,
// otherwise it produces forever.
type Sine struct {
	// Frequency of the wave in Hz.
	Frequency float64
	// Amplitude of the wave, clamped to [0, 1].
	Amplitude float64
	// Format the generator emits.
	Format flume.Format
	// Limit is the total number of frames to generate, 0 for
	// unbounded.
	Limit int64
	// ChunkFrames is the chunk size; defaults to 512 frames.
	ChunkFrames int

	out       flume.Bus
	pending   *flume.Chunk
	generated int64
	started   bool
	done      bool
	measure   flume.MeasureFunc
}

// BindOutput implements flume.Emitter.
func (s *Sine) BindOutput(bus flume.Bus) { s.out = bus }

// OutputFormat implements flume.Emitter.
func (s *Sine) OutputFormat() flume.Format { return s.Format }

// SetMeasure implements flume.Meterable.
func (s *Sine) SetMeasure(m flume.MeasureFunc) { s.measure = m }

// Configure validates the generator parameters. As a source it
// declares its own format and ignores the upstream one.
func (s *Sine) Configure(flume.Format) error {
	if err := s.Format.Validate(); err != nil {
		return err
	}
	if s.Frequency <= 0 {
		return &flume.FormatError{Format: s.Format, Reason: "frequency must be positive"}
	}
	if s.ChunkFrames == 0 {
		s.ChunkFrames = defaultChunkFrames
	}
	if s.Limit == 0 {
		s.Limit = s.Format.NumFrames
	}
	s.Amplitude = math.Max(0, math.Min(1, s.Amplitude))
	return s.Reset()
}

// Step generates and sends one chunk.
func (s *Sine) Step() (flume.Outcome, error) {
	if s.out == nil {
		return flume.Starved, errors.New("output not bound")
	}
	if s.pending != nil {
		return s.send()
	}
	if s.done {
		return flume.Complete, nil
	}
	c, err := acquire(s.out, s.Format, s.ChunkFrames)
	if err != nil {
		// every pool block is in flight.
		return flume.Blocked, nil
	}
	s.fill(c)
	s.pending = c
	return s.send()
}

// fill writes the next run of samples into the chunk and marks its
// stream position.
func (s *Sine) fill(c *flume.Chunk) {
	frames := c.Cap()
	if s.Limit > 0 {
		if left := s.Limit - s.generated; int64(frames) > left {
			frames = int(left)
		}
	}
	c.SetLen(frames)
	step := 2 * math.Pi * s.Frequency / float64(s.Format.SampleRate)
	for j := 0; j < frames; j++ {
		v := s.Amplitude * math.Sin(step*float64(s.generated+int64(j)))
		for i := 0; i < s.Format.Channels; i++ {
			c.Channel(i)[j] = v
		}
	}
	s.generated += int64(frames)
	last := s.Limit > 0 && s.generated >= s.Limit
	switch {
	case !s.started && last:
		c.SetPosition(flume.Single)
	case !s.started:
		c.SetPosition(flume.First)
	case last:
		c.SetPosition(flume.Last)
	default:
		c.SetPosition(flume.Middle)
	}
	s.started = true
	s.done = last
}

func (s *Sine) send() (flume.Outcome, error) {
	switch err := s.out.TrySend(s.pending); err {
	case nil:
		if s.measure != nil {
			s.measure(s.pending.Len())
		}
		s.pending = nil
		return flume.Progressed, nil
	case flume.ErrFull:
		return flume.Blocked, nil
	default:
		// downstream closed, nothing left to produce.
		release(s.out, s.pending)
		s.pending = nil
		s.done = true
		return flume.Complete, nil
	}
}

// Flush sends a held chunk if the bus has room and closes the output.
func (s *Sine) Flush() error {
	if s.pending != nil {
		if err := s.out.TrySend(s.pending); err != nil {
			release(s.out, s.pending)
		}
		s.pending = nil
	}
	s.done = true
	s.out.Close()
	return nil
}

// Reset returns the generator to the beginning of its stream.
func (s *Sine) Reset() error {
	if s.pending != nil {
		release(s.out, s.pending)
		s.pending = nil
	}
	s.generated = 0
	s.started = false
	s.done = false
	return nil
}
