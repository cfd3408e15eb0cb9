package element_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/databus"
	"github.com/flume-dsp/flume/element"
)

func sendChunk(t *testing.T, bus flume.Bus, values ...float64) *flume.Chunk {
	t.Helper()
	c := flume.NewChunk(stereo, len(values))
	c.SetLen(len(values))
	for ch := 0; ch < stereo.Channels; ch++ {
		copy(c.Channel(ch), values)
	}
	require.NoError(t, bus.TrySend(c))
	return c
}

func TestGain(t *testing.T) {
	var tests = []struct {
		name     string
		gain     float64
		in       float64
		expected float64
	}{
		{name: "attenuate", gain: 0.5, in: 0.8, expected: 0.4},
		{name: "unity", gain: 1, in: 0.8, expected: 0.8},
		{name: "amplify clamps", gain: 4, in: 0.5, expected: 1},
		{name: "amplify clamps negative", gain: 4, in: -0.5, expected: -1},
		{name: "mute", gain: 0, in: 0.8, expected: 0},
	}
	for _, c := range tests {
		t.Run(c.name, func(t *testing.T) {
			g := element.NewGain(c.gain)
			in, out := databus.NewRing(1), databus.NewRing(1)
			g.BindInput(in)
			g.BindOutput(out)
			require.NoError(t, g.Configure(stereo))

			sendChunk(t, in, c.in)
			outcome, err := g.Step()
			require.NoError(t, err)
			assert.Equal(t, flume.Progressed, outcome)

			got, err := out.TryReceive()
			require.NoError(t, err)
			assert.InDelta(t, c.expected, got.Channel(0)[0], 1e-9)
			assert.InDelta(t, c.expected, got.Channel(1)[0], 1e-9)
		})
	}
}

func TestPassOutcomes(t *testing.T) {
	p := element.NewPass()
	in, out := databus.NewRing(2), databus.NewRing(1)
	p.BindInput(in)
	p.BindOutput(out)
	require.NoError(t, p.Configure(stereo))

	// nothing to do yet.
	outcome, err := p.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Starved, outcome)

	a := sendChunk(t, in, 0.1)
	outcome, err = p.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)

	// output full: the staged chunk waits, nothing is dropped.
	sendChunk(t, in, 0.2)
	outcome, err = p.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Blocked, outcome)

	got, err := out.TryReceive()
	require.NoError(t, err)
	assert.Same(t, a, got)

	outcome, err = p.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)

	// upstream closed and drained: the element completes.
	in.Close()
	outcome, err = p.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Complete, outcome)
}

func TestTransformFlushDrains(t *testing.T) {
	p := element.NewPass()
	in, out := databus.NewRing(4), databus.NewRing(4)
	p.BindInput(in)
	p.BindOutput(out)
	require.NoError(t, p.Configure(stereo))

	sendChunk(t, in, 0.1)
	sendChunk(t, in, 0.2)
	sendChunk(t, in, 0.3)

	require.NoError(t, p.Flush())
	assert.True(t, out.Closed())

	// everything buffered on the input made it out.
	for _, want := range []float64{0.1, 0.2, 0.3} {
		c, err := out.TryReceive()
		require.NoError(t, err)
		assert.InDelta(t, want, c.Channel(0)[0], 1e-9)
	}
	_, err := out.TryReceive()
	assert.Equal(t, flume.ErrClosed, err)
}

func TestTransformPoolRelocation(t *testing.T) {
	// input and output pools circulate independently: the transform
	// copies into an output block and releases the input block.
	in := databus.NewPool(stereo, 2, 8)
	out := databus.NewPool(stereo, 2, 8)
	g := element.NewGain(0.5)
	g.BindInput(in)
	g.BindOutput(out)
	require.NoError(t, g.Configure(stereo))

	for i := 0; i < 50; i++ {
		src, err := in.Acquire()
		require.NoError(t, err)
		src.SetLen(8)
		for ch := 0; ch < stereo.Channels; ch++ {
			for j := range src.Channel(ch) {
				src.Channel(ch)[j] = 0.8
			}
		}
		require.NoError(t, in.TrySend(src))

		outcome, err := g.Step()
		require.NoError(t, err)
		require.Equal(t, flume.Progressed, outcome)

		got, err := out.TryReceive()
		require.NoError(t, err)
		assert.InDelta(t, 0.4, got.Channel(0)[0], 1e-9)
		out.Release(got)
	}
}

func TestTransformPoolBlockTooSmall(t *testing.T) {
	// relocation into a pool whose blocks cannot hold the staged
	// chunk must fail loudly instead of dropping frames.
	p := element.NewPass()
	in := databus.NewRing(2)
	out := databus.NewPool(stereo, 2, 16)
	p.BindInput(in)
	p.BindOutput(out)
	require.NoError(t, p.Configure(stereo))

	sendChunk(t, in, make([]float64, 64)...)
	_, err := p.Step()
	require.Error(t, err)
	_, rerr := out.TryReceive()
	assert.Equal(t, flume.ErrEmpty, rerr)
}

func TestTransformPoolExhaustedBlocks(t *testing.T) {
	in := databus.NewPool(stereo, 1, 8)
	out := databus.NewPool(stereo, 1, 8)
	p := element.NewPass()
	p.BindInput(in)
	p.BindOutput(out)
	require.NoError(t, p.Configure(stereo))

	src, err := in.Acquire()
	require.NoError(t, err)
	src.SetLen(8)
	require.NoError(t, in.TrySend(src))

	// hold the only output block hostage.
	held, err := out.Acquire()
	require.NoError(t, err)

	outcome, err := p.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Blocked, outcome)

	out.Release(held)
	outcome, err = p.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)
}
