package mock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/databus"
	"github.com/flume-dsp/flume/internal/mock"
)

var format = flume.Format{
	SampleRate: 44100,
	Channels:   2,
	BitDepth:   flume.BitDepth16,
}

func TestSourceLimit(t *testing.T) {
	source := &mock.Source{Limit: 100, Value: 0.7, Format: format, ChunkFrames: 64}
	bus := databus.NewRing(4)
	source.BindOutput(bus)
	require.NoError(t, source.Configure(flume.Format{}))

	outcome, err := source.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)
	outcome, err = source.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)
	outcome, err = source.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Complete, outcome)

	chunks, frames := source.Count()
	assert.Equal(t, 2, chunks)
	assert.Equal(t, 100, frames)

	first, err := bus.TryReceive()
	require.NoError(t, err)
	assert.Equal(t, flume.First, first.Position())
	assert.Equal(t, 64, first.Len())
	assert.Equal(t, 0.7, first.Channel(0)[0])

	last, err := bus.TryReceive()
	require.NoError(t, err)
	assert.Equal(t, flume.Last, last.Position())
	assert.Equal(t, 36, last.Len())
}

func TestSinkBuffers(t *testing.T) {
	sink := &mock.Sink{}
	bus := databus.NewRing(2)
	sink.BindInput(bus)
	require.NoError(t, sink.Configure(format))

	c := flume.NewChunk(format, 4)
	c.SetLen(4)
	for i := range c.Channel(0) {
		c.Channel(0)[i] = 0.5
	}
	require.NoError(t, bus.TrySend(c))

	outcome, err := sink.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)

	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, sink.Buffer()[0])
	_, frames := sink.Count()
	assert.Equal(t, 4, frames)

	require.NoError(t, sink.Reset())
	assert.Empty(t, sink.Buffer())
}

func TestHooks(t *testing.T) {
	source := &mock.Source{Limit: 10, Format: format}
	bus := databus.NewRing(1)
	source.BindOutput(bus)

	require.NoError(t, source.Configure(flume.Format{}))
	assert.True(t, source.Configured)
	require.NoError(t, source.Flush())
	assert.True(t, source.Flushed)
	require.NoError(t, source.Reset())
	assert.True(t, source.Resetted)
}
