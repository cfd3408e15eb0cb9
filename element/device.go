package element

import (
	"errors"
	"io"
	"time"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/device"
)

// DeviceSource wraps an input device behind the element contract. A
// device with no data right now makes the element starve; io.EOF ends
// the stream.
type DeviceSource struct {
	// Device to read from.
	Device device.Reader
	// Format the device delivers. Left zero, it is adopted from the
	// device when it knows its own format.
	Format flume.Format
	// ChunkFrames is the chunk size; defaults to 512 frames.
	ChunkFrames int

	out     flume.Bus
	pending *flume.Chunk
	started bool
	eof     bool
	measure flume.MeasureFunc
}

// BindOutput implements flume.Emitter.
func (s *DeviceSource) BindOutput(bus flume.Bus) { s.out = bus }

// OutputFormat implements flume.Emitter.
func (s *DeviceSource) OutputFormat() flume.Format { return s.Format }

// SetMeasure implements flume.Meterable.
func (s *DeviceSource) SetMeasure(m flume.MeasureFunc) { s.measure = m }

// Configure adopts the device format and validates it.
func (s *DeviceSource) Configure(flume.Format) error {
	if s.Device == nil {
		return errors.New("device not set")
	}
	if s.Format.IsZero() {
		if f, ok := s.Device.(device.Formatted); ok {
			s.Format = f.Format()
		}
	}
	if err := s.Format.Validate(); err != nil {
		return err
	}
	if s.ChunkFrames == 0 {
		s.ChunkFrames = defaultChunkFrames
	}
	return s.Reset()
}

// Step reads one chunk from the device and sends it downstream.
func (s *DeviceSource) Step() (flume.Outcome, error) {
	if s.out == nil {
		return flume.Starved, errors.New("output not bound")
	}
	if s.pending != nil {
		return s.send()
	}
	if s.eof {
		return flume.Complete, nil
	}
	c, err := acquire(s.out, s.Format, s.ChunkFrames)
	if err != nil {
		return flume.Blocked, nil
	}
	n, err := s.Device.ReadInto(c)
	switch {
	case errors.Is(err, device.ErrWouldBlock):
		release(s.out, c)
		return flume.Starved, nil
	case errors.Is(err, io.EOF):
		s.eof = true
		if n == 0 {
			release(s.out, c)
			return flume.Complete, nil
		}
	case err != nil:
		release(s.out, c)
		return flume.Starved, err
	}
	c.SetLen(n)
	s.mark(c)
	s.pending = c
	return s.send()
}

// mark stamps the chunk's stream position.
func (s *DeviceSource) mark(c *flume.Chunk) {
	switch {
	case !s.started && s.eof:
		c.SetPosition(flume.Single)
	case !s.started:
		c.SetPosition(flume.First)
	case s.eof:
		c.SetPosition(flume.Last)
	default:
		c.SetPosition(flume.Middle)
	}
	s.started = true
}

func (s *DeviceSource) send() (flume.Outcome, error) {
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
		release(s.out, s.pending)
		s.pending = nil
		s.eof = true
		return flume.Complete, nil
	}
}

// Flush sends a held chunk if the bus has room, closes the output and
// releases the device when it is closable.
func (s *DeviceSource) Flush() error {
	if s.pending != nil {
		if err := s.out.TrySend(s.pending); err != nil {
			release(s.out, s.pending)
		}
		s.pending = nil
	}
	s.out.Close()
	if c, ok := s.Device.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Reset rewinds the element state; the device itself is rewound when it
// supports seeking.
func (s *DeviceSource) Reset() error {
	if s.pending != nil {
		release(s.out, s.pending)
		s.pending = nil
	}
	s.started = false
	s.eof = false
	if r, ok := s.Device.(io.Seeker); ok {
		_, err := r.Seek(0, io.SeekStart)
		return err
	}
	return nil
}

// DeviceSink wraps an output device behind the element contract.
// Backpressure from the device is reported as a blocked outcome.
type DeviceSink struct {
	// Device to write to.
	Device device.Writer
	// FlushWait bounds how long Flush waits for the device to drain
	// buffered chunks; defaults to one second.
	FlushWait time.Duration

	in      flume.Bus
	staged  *flume.Chunk
	format  flume.Format
	measure flume.MeasureFunc
}

// BindInput implements flume.Receiver.
func (s *DeviceSink) BindInput(bus flume.Bus) { s.in = bus }

// SetMeasure implements flume.Meterable.
func (s *DeviceSink) SetMeasure(m flume.MeasureFunc) { s.measure = m }

// Configure validates the negotiated format.
func (s *DeviceSink) Configure(format flume.Format) error {
	if s.Device == nil {
		return errors.New("device not set")
	}
	if err := format.Validate(); err != nil {
		return err
	}
	if s.FlushWait == 0 {
		s.FlushWait = time.Second
	}
	s.format = format
	return nil
}

// Step writes one chunk to the device.
func (s *DeviceSink) Step() (flume.Outcome, error) {
	if s.in == nil {
		return flume.Starved, errors.New("input not bound")
	}
	if s.staged == nil {
		c, err := s.in.TryReceive()
		switch err {
		case nil:
			s.staged = c
		case flume.ErrEmpty:
			return flume.Starved, nil
		default:
			return flume.Complete, nil
		}
	}
	n, err := s.Device.WriteFrom(s.staged)
	switch {
	case errors.Is(err, device.ErrWouldBlock):
		return flume.Blocked, nil
	case err != nil:
		return flume.Blocked, err
	}
	if s.measure != nil {
		s.measure(n)
	}
	release(s.in, s.staged)
	s.staged = nil
	return flume.Progressed, nil
}

// Flush drains the input bus into the device and releases it when it is
// closable. This is the path every chunk buffered at stop time takes.
// A device that stays busy past FlushWait fails the flush rather than
// spinning forever.
func (s *DeviceSink) Flush() error {
	wait := s.FlushWait
	if wait == 0 {
		wait = time.Second
	}
	deadline := time.Now().Add(wait)
	for {
		if s.staged == nil {
			c, err := s.in.TryReceive()
			if err != nil {
				break
			}
			s.staged = c
		}
		if _, err := s.Device.WriteFrom(s.staged); err != nil {
			if errors.Is(err, device.ErrWouldBlock) {
				if time.Now().After(deadline) {
					release(s.in, s.staged)
					s.staged = nil
					return err
				}
				// the device drains in real time; wait it out.
				time.Sleep(time.Millisecond)
				continue
			}
			return err
		}
		release(s.in, s.staged)
		s.staged = nil
	}
	if c, ok := s.Device.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Reset discards a staged chunk.
func (s *DeviceSink) Reset() error {
	if s.staged != nil {
		release(s.in, s.staged)
		s.staged = nil
	}
	return nil
}
