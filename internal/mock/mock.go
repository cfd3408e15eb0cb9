// Package mock provides mocks for pipeline elements and allows to
// execute integration tests.
package mock

import (
	"sync"

	"github.com/flume-dsp/flume"
)

// Source mocks a generating element. It emits chunks filled with Value
// until Limit frames have been produced.
type Source struct {
	counter
	Limit       int
	Value       float64
	Format      flume.Format
	ChunkFrames int
	ErrorOnStep error
	Hooks

	out     flume.Bus
	emitted int
	started bool
}

// BindOutput implements flume.Emitter.
func (m *Source) BindOutput(bus flume.Bus) { m.out = bus }

// OutputFormat implements flume.Emitter.
func (m *Source) OutputFormat() flume.Format { return m.Format }

// Configure implements flume.Element.
func (m *Source) Configure(flume.Format) error {
	if m.ChunkFrames == 0 {
		m.ChunkFrames = 64
	}
	m.Configured = true
	return m.ErrorOnConfigure
}

// Step implements flume.Element.
func (m *Source) Step() (flume.Outcome, error) {
	if m.ErrorOnStep != nil {
		return flume.Starved, m.ErrorOnStep
	}
	if m.emitted >= m.Limit {
		return flume.Complete, nil
	}
	frames := m.ChunkFrames
	if left := m.Limit - m.emitted; left < frames {
		frames = left
	}
	c := flume.NewChunk(m.Format, m.ChunkFrames)
	c.SetLen(frames)
	for ch := 0; ch < m.Format.Channels; ch++ {
		s := c.Channel(ch)
		for i := range s {
			s[i] = m.Value
		}
	}
	switch {
	case !m.started && frames == m.Limit:
		c.SetPosition(flume.Single)
	case !m.started:
		c.SetPosition(flume.First)
	case m.emitted+frames >= m.Limit:
		c.SetPosition(flume.Last)
	default:
		c.SetPosition(flume.Middle)
	}
	if err := m.out.TrySend(c); err != nil {
		if err == flume.ErrFull {
			return flume.Blocked, nil
		}
		return flume.Complete, nil
	}
	m.started = true
	m.emitted += frames
	m.advance(frames)
	return flume.Progressed, nil
}

// Flush implements flume.Element.
func (m *Source) Flush() error {
	m.Flushed = true
	m.out.Close()
	return m.ErrorOnFlush
}

// Reset implements flume.Element.
func (m *Source) Reset() error {
	m.Resetted = true
	m.emitted = 0
	m.started = false
	m.reset()
	return m.ErrorOnReset
}

// Transform mocks a processing element that forwards chunks untouched.
type Transform struct {
	counter
	ErrorOnStep error
	Hooks

	in     flume.Bus
	out    flume.Bus
	staged *flume.Chunk
}

// BindInput implements flume.Receiver.
func (m *Transform) BindInput(bus flume.Bus) { m.in = bus }

// BindOutput implements flume.Emitter.
func (m *Transform) BindOutput(bus flume.Bus) { m.out = bus }

// OutputFormat implements flume.Emitter.
func (m *Transform) OutputFormat() flume.Format { return flume.Format{} }

// Configure implements flume.Element.
func (m *Transform) Configure(flume.Format) error {
	m.Configured = true
	return m.ErrorOnConfigure
}

// Step implements flume.Element.
func (m *Transform) Step() (flume.Outcome, error) {
	if m.ErrorOnStep != nil {
		return flume.Starved, m.ErrorOnStep
	}
	if m.staged == nil {
		c, err := m.in.TryReceive()
		switch err {
		case nil:
			m.staged = c
		case flume.ErrEmpty:
			return flume.Starved, nil
		default:
			return flume.Complete, nil
		}
	}
	if err := m.out.TrySend(m.staged); err != nil {
		if err == flume.ErrFull {
			return flume.Blocked, nil
		}
		return flume.Complete, nil
	}
	m.advance(m.staged.Len())
	m.staged = nil
	return flume.Progressed, nil
}

// Flush implements flume.Element. It forwards whatever remains on the
// input bus before closing the output.
func (m *Transform) Flush() error {
	m.Flushed = true
	defer m.out.Close()
	for {
		if m.staged == nil {
			c, err := m.in.TryReceive()
			if err != nil {
				break
			}
			m.staged = c
		}
		if err := m.out.TrySend(m.staged); err != nil {
			break
		}
		m.advance(m.staged.Len())
		m.staged = nil
	}
	return m.ErrorOnFlush
}

// Reset implements flume.Element.
func (m *Transform) Reset() error {
	m.Resetted = true
	m.staged = nil
	m.reset()
	return m.ErrorOnReset
}

// Sink mocks a consuming element. Received samples are buffered unless
// Discard is set.
type Sink struct {
	counter
	Discard     bool
	ErrorOnStep error
	Hooks

	mu     sync.Mutex
	in     flume.Bus
	buffer [][]float64
}

// BindInput implements flume.Receiver.
func (m *Sink) BindInput(bus flume.Bus) { m.in = bus }

// Configure implements flume.Element.
func (m *Sink) Configure(flume.Format) error {
	m.Configured = true
	return m.ErrorOnConfigure
}

// Step implements flume.Element.
func (m *Sink) Step() (flume.Outcome, error) {
	if m.ErrorOnStep != nil {
		return flume.Starved, m.ErrorOnStep
	}
	c, err := m.in.TryReceive()
	switch err {
	case nil:
	case flume.ErrEmpty:
		return flume.Starved, nil
	default:
		return flume.Complete, nil
	}
	m.consume(c)
	return flume.Progressed, nil
}

func (m *Sink) consume(c *flume.Chunk) {
	m.mu.Lock()
	if !m.Discard {
		if m.buffer == nil {
			m.buffer = make([][]float64, c.Format().Channels)
		}
		for ch := range m.buffer {
			m.buffer[ch] = append(m.buffer[ch], c.Channel(ch)...)
		}
	}
	m.advance(c.Len())
	m.mu.Unlock()
	// recycle the block when the bus hands them out of a pool.
	if a, ok := m.in.(interface{ Release(*flume.Chunk) }); ok {
		a.Release(c)
	}
}

// Flush implements flume.Element. It drains the input bus so no chunk
// is lost at stop time.
func (m *Sink) Flush() error {
	m.Flushed = true
	for {
		c, err := m.in.TryReceive()
		if err != nil {
			break
		}
		m.consume(c)
	}
	return m.ErrorOnFlush
}

// Reset implements flume.Element.
func (m *Sink) Reset() error {
	m.Resetted = true
	m.mu.Lock()
	m.buffer = nil
	m.mu.Unlock()
	m.reset()
	return m.ErrorOnReset
}

// Buffer returns the sink's buffered samples, one slice per channel.
func (m *Sink) Buffer() [][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float64, len(m.buffer))
	for i := range m.buffer {
		out[i] = append([]float64(nil), m.buffer[i]...)
	}
	return out
}

// Hooks allows to mock element lifecycle hooks.
type Hooks struct {
	Configured bool
	Resetted   bool
	Flushed    bool

	ErrorOnConfigure error
	ErrorOnReset     error
	ErrorOnFlush     error
}

// counter counts chunks and frames.
type counter struct {
	mu     sync.Mutex
	chunks int
	frames int
}

func (c *counter) advance(size int) {
	c.mu.Lock()
	c.chunks++
	c.frames += size
	c.mu.Unlock()
}

func (c *counter) reset() {
	c.mu.Lock()
	c.chunks, c.frames = 0, 0
	c.mu.Unlock()
}

// Count returns chunks and frames consumed or produced so far.
func (c *counter) Count() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunks, c.frames
}
