package element

import (
	"errors"

	"github.com/flume-dsp/flume"
)

// Mixer sums any number of input streams into one. A frame's output
// value is the average of the inputs still delivering data at that
// frame, so a stream ending early doesn't drop the overall level.
type Mixer struct {
	ins     []flume.Bus
	out     flume.Bus
	staged  []*flume.Chunk
	closed  []bool
	pending *flume.Chunk
	format  flume.Format
	measure flume.MeasureFunc
}

// NewMixer returns a mixer with no inputs bound yet.
func NewMixer() *Mixer {
	return &Mixer{}
}

// BindInput adds one more input stream.
func (m *Mixer) BindInput(bus flume.Bus) {
	m.ins = append(m.ins, bus)
	m.staged = append(m.staged, nil)
	m.closed = append(m.closed, false)
}

// BindOutput implements flume.Emitter.
func (m *Mixer) BindOutput(bus flume.Bus) { m.out = bus }

// OutputFormat implements flume.Emitter.
func (m *Mixer) OutputFormat() flume.Format { return m.format }

// SetMeasure implements flume.Meterable.
func (m *Mixer) SetMeasure(fn flume.MeasureFunc) { m.measure = fn }

// Configure adopts the negotiated input format. The pipeline guarantees
// all inputs share it.
func (m *Mixer) Configure(format flume.Format) error {
	if err := format.Validate(); err != nil {
		return err
	}
	if len(m.ins) == 0 {
		return errors.New("mixer has no inputs")
	}
	m.format = format
	return nil
}

// Step collects one chunk from every live input, mixes them and sends
// the result.
func (m *Mixer) Step() (flume.Outcome, error) {
	if m.out == nil {
		return flume.Starved, errors.New("output not bound")
	}
	if m.pending != nil {
		return m.send()
	}
	ready := true
	for i, bus := range m.ins {
		if m.staged[i] != nil || m.closed[i] {
			continue
		}
		c, err := bus.TryReceive()
		switch err {
		case nil:
			m.staged[i] = c
		case flume.ErrEmpty:
			ready = false
		default:
			m.closed[i] = true
		}
	}
	if m.drained() {
		return flume.Complete, nil
	}
	if !ready {
		return flume.Starved, nil
	}
	mixed, err := m.mix()
	if err != nil {
		return flume.Blocked, err
	}
	m.pending = mixed
	return m.send()
}

// drained reports whether every input closed with nothing staged.
func (m *Mixer) drained() bool {
	for i := range m.ins {
		if m.staged[i] != nil || !m.closed[i] {
			return false
		}
	}
	return true
}

// mix averages the staged chunks frame by frame over the inputs that
// still have data there. A nil chunk with a nil error means the output
// pool had no free block yet.
func (m *Mixer) mix() (*flume.Chunk, error) {
	frames := 0
	for _, c := range m.staged {
		if c != nil && c.Len() > frames {
			frames = c.Len()
		}
	}
	mixed, err := acquire(m.out, m.format, frames)
	if err != nil {
		return nil, nil
	}
	if err := fit(mixed, frames); err != nil {
		release(m.out, mixed)
		return nil, err
	}
	mixed.SetLen(frames)
	for ch := 0; ch < m.format.Channels; ch++ {
		dst := mixed.Channel(ch)
		for j := 0; j < frames; j++ {
			var sum float64
			var active float64
			for _, c := range m.staged {
				if c == nil || j >= c.Len() {
					continue
				}
				sum += c.Channel(ch)[j]
				active++
			}
			if active > 0 {
				dst[j] = sum / active
			}
		}
	}
	for i, c := range m.staged {
		if c != nil {
			release(m.ins[i], c)
			m.staged[i] = nil
		}
	}
	return mixed, nil
}

func (m *Mixer) send() (flume.Outcome, error) {
	if m.pending == nil {
		// the output pool had no free block; retry next step.
		return flume.Blocked, nil
	}
	switch err := m.out.TrySend(m.pending); err {
	case nil:
		if m.measure != nil {
			m.measure(m.pending.Len())
		}
		m.pending = nil
		return flume.Progressed, nil
	case flume.ErrFull:
		return flume.Blocked, nil
	default:
		release(m.out, m.pending)
		m.pending = nil
		return flume.Complete, nil
	}
}

// Flush mixes and sends whatever is staged, then closes the output.
func (m *Mixer) Flush() error {
	defer m.out.Close()
	for {
		if m.pending == nil {
			for i, bus := range m.ins {
				if m.staged[i] != nil || m.closed[i] {
					continue
				}
				if c, err := bus.TryReceive(); err == nil {
					m.staged[i] = c
				}
			}
			if !m.anyStaged() {
				return nil
			}
			mixed, err := m.mix()
			if err != nil {
				return err
			}
			m.pending = mixed
		}
		if m.pending == nil {
			return nil
		}
		if err := m.out.TrySend(m.pending); err != nil {
			release(m.out, m.pending)
			m.pending = nil
			return nil
		}
		m.pending = nil
	}
}

func (m *Mixer) anyStaged() bool {
	for _, c := range m.staged {
		if c != nil {
			return true
		}
	}
	return false
}

// Reset discards staged chunks and reopens all inputs.
func (m *Mixer) Reset() error {
	for i, c := range m.staged {
		if c != nil {
			release(m.ins[i], c)
			m.staged[i] = nil
		}
		m.closed[i] = false
	}
	if m.pending != nil {
		release(m.out, m.pending)
		m.pending = nil
	}
	return nil
}
