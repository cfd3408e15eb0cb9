package element

import (
	"errors"
	"math"

	"github.com/flume-dsp/flume"
)

// transform carries the plumbing shared by single-input, single-output
// processing elements: staging, backpressure, pool recycling and flush.
// The concrete element contributes an in-place processing function.
type transform struct {
	in  flume.Bus
	out flume.Bus
	// staged is a received chunk; once processed it only waits for
	// room on the output bus.
	staged    *flume.Chunk
	processed bool
	format    flume.Format
	measure   flume.MeasureFunc
	fn        func(*flume.Chunk)
}

func (t *transform) BindInput(bus flume.Bus)        { t.in = bus }
func (t *transform) BindOutput(bus flume.Bus)       { t.out = bus }
func (t *transform) OutputFormat() flume.Format     { return t.format }
func (t *transform) SetMeasure(m flume.MeasureFunc) { t.measure = m }

func (t *transform) Configure(format flume.Format) error {
	if err := format.Validate(); err != nil {
		return err
	}
	t.format = format
	return nil
}

func (t *transform) Step() (flume.Outcome, error) {
	if t.in == nil || t.out == nil {
		return flume.Starved, errors.New("ports not bound")
	}
	if t.staged == nil {
		c, err := t.in.TryReceive()
		switch err {
		case nil:
			t.staged = c
			t.processed = false
		case flume.ErrEmpty:
			return flume.Starved, nil
		default:
			return flume.Complete, nil
		}
	}
	if !t.processed {
		outcome, ok, err := t.relocate()
		if err != nil {
			return outcome, err
		}
		if !ok {
			return outcome, nil
		}
		t.fn(t.staged)
		t.processed = true
	}
	switch err := t.out.TrySend(t.staged); err {
	case nil:
		if t.measure != nil {
			t.measure(t.staged.Len())
		}
		t.staged = nil
		return flume.Progressed, nil
	case flume.ErrFull:
		return flume.Blocked, nil
	default:
		// downstream closed; the stream ends here.
		release(t.out, t.staged)
		t.staged = nil
		return flume.Complete, nil
	}
}

// relocate moves the staged chunk into a block owned by the output bus,
// so pool capacity circulates per link and the input block returns to
// its own pool immediately.
func (t *transform) relocate() (flume.Outcome, bool, error) {
	if !allocates(t.out) {
		return flume.Progressed, true, nil
	}
	dst, err := acquire(t.out, t.format, t.staged.Len())
	if err != nil {
		return flume.Blocked, false, nil
	}
	if err := fit(dst, t.staged.Len()); err != nil {
		release(t.out, dst)
		return flume.Blocked, false, err
	}
	dst.CopyFrom(t.staged)
	release(t.in, t.staged)
	t.staged = dst
	return flume.Progressed, true, nil
}

// Flush drains what remains on the input side and closes the output.
func (t *transform) Flush() error {
	defer t.out.Close()
	for {
		if t.staged != nil {
			if !t.processed {
				_, ok, err := t.relocate()
				if err != nil {
					release(t.in, t.staged)
					t.staged = nil
					return err
				}
				if !ok {
					release(t.in, t.staged)
					t.staged = nil
					return nil
				}
				t.fn(t.staged)
				t.processed = true
			}
			if err := t.out.TrySend(t.staged); err != nil {
				release(t.in, t.staged)
				t.staged = nil
				return nil
			}
			t.staged = nil
		}
		c, err := t.in.TryReceive()
		if err != nil {
			return nil
		}
		t.staged = c
		t.processed = false
	}
}

func (t *transform) Reset() error {
	if t.staged != nil {
		release(t.in, t.staged)
		t.staged = nil
	}
	t.processed = false
	return nil
}

// Gain scales every sample by a constant factor, clamping the result to
// the valid range.
type Gain struct {
	transform
	gain float64
}

// NewGain returns a gain transform with the provided factor.
func NewGain(gain float64) *Gain {
	g := &Gain{gain: gain}
	g.fn = g.apply
	return g
}

func (g *Gain) apply(c *flume.Chunk) {
	for _, channel := range c.Samples() {
		for i, v := range channel {
			channel[i] = math.Max(-1, math.Min(1, v*g.gain))
		}
	}
}

// Pass forwards chunks unchanged. Useful as a probe point and in
// tests.
type Pass struct {
	transform
}

// NewPass returns a passthrough transform.
func NewPass() *Pass {
	p := &Pass{}
	p.fn = func(*flume.Chunk) {}
	return p
}
