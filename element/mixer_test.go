package element_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/databus"
	"github.com/flume-dsp/flume/element"
)

func TestMixerAverages(t *testing.T) {
	m := element.NewMixer()
	a, b := databus.NewRing(2), databus.NewRing(2)
	out := databus.NewRing(2)
	m.BindInput(a)
	m.BindInput(b)
	m.BindOutput(out)
	require.NoError(t, m.Configure(stereo))

	sendChunk(t, a, 0.2, 0.2)
	sendChunk(t, b, 0.6, 0.6)

	outcome, err := m.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)

	got, err := out.TryReceive()
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	for ch := 0; ch < stereo.Channels; ch++ {
		for _, v := range got.Channel(ch) {
			assert.InDelta(t, 0.4, v, 1e-9)
		}
	}
}

func TestMixerWaitsForAllInputs(t *testing.T) {
	m := element.NewMixer()
	a, b := databus.NewRing(2), databus.NewRing(2)
	out := databus.NewRing(2)
	m.BindInput(a)
	m.BindInput(b)
	m.BindOutput(out)
	require.NoError(t, m.Configure(stereo))

	sendChunk(t, a, 0.2)

	// one input has no chunk yet: the mixer starves rather than
	// mixing a partial frame set.
	outcome, err := m.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Starved, outcome)

	sendChunk(t, b, 0.4)
	outcome, err = m.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)
}

func TestMixerEndedInputDoesNotDropLevel(t *testing.T) {
	m := element.NewMixer()
	a, b := databus.NewRing(2), databus.NewRing(2)
	out := databus.NewRing(4)
	m.BindInput(a)
	m.BindInput(b)
	m.BindOutput(out)
	require.NoError(t, m.Configure(stereo))

	sendChunk(t, a, 0.2)
	sendChunk(t, b, 0.6)
	b.Close()

	outcome, err := m.Step()
	require.NoError(t, err)
	require.Equal(t, flume.Progressed, outcome)
	got, err := out.TryReceive()
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got.Channel(0)[0], 1e-9)

	// with b gone, a alone defines the output level.
	sendChunk(t, a, 0.2)
	outcome, err = m.Step()
	require.NoError(t, err)
	require.Equal(t, flume.Progressed, outcome)
	got, err = out.TryReceive()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, got.Channel(0)[0], 1e-9)
}

func TestMixerCompletes(t *testing.T) {
	m := element.NewMixer()
	a, b := databus.NewRing(2), databus.NewRing(2)
	out := databus.NewRing(2)
	m.BindInput(a)
	m.BindInput(b)
	m.BindOutput(out)
	require.NoError(t, m.Configure(stereo))

	a.Close()
	b.Close()

	outcome, err := m.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Complete, outcome)
}

func TestMixerUnevenChunks(t *testing.T) {
	m := element.NewMixer()
	a, b := databus.NewRing(2), databus.NewRing(2)
	out := databus.NewRing(2)
	m.BindInput(a)
	m.BindInput(b)
	m.BindOutput(out)
	require.NoError(t, m.Configure(stereo))

	sendChunk(t, a, 0.2, 0.2, 0.2, 0.2)
	sendChunk(t, b, 0.6, 0.6)

	outcome, err := m.Step()
	require.NoError(t, err)
	require.Equal(t, flume.Progressed, outcome)

	got, err := out.TryReceive()
	require.NoError(t, err)
	require.Equal(t, 4, got.Len())
	// both active on the overlap, a alone past b's end.
	assert.InDelta(t, 0.4, got.Channel(0)[0], 1e-9)
	assert.InDelta(t, 0.4, got.Channel(0)[1], 1e-9)
	assert.InDelta(t, 0.2, got.Channel(0)[2], 1e-9)
	assert.InDelta(t, 0.2, got.Channel(0)[3], 1e-9)
}

func TestMixerPoolBlockTooSmall(t *testing.T) {
	// pool blocks are sized at link construction; inputs carrying
	// larger chunks must surface an error, not corrupt memory.
	m := element.NewMixer()
	in := databus.NewRing(2)
	out := databus.NewPool(stereo, 2, 16)
	m.BindInput(in)
	m.BindOutput(out)
	require.NoError(t, m.Configure(stereo))

	sendChunk(t, in, make([]float64, 64)...)
	_, err := m.Step()
	require.Error(t, err)
	_, rerr := out.TryReceive()
	assert.Equal(t, flume.ErrEmpty, rerr)
}

func TestMixerRequiresInput(t *testing.T) {
	m := element.NewMixer()
	m.BindOutput(databus.NewRing(1))
	assert.Error(t, m.Configure(stereo))
}
