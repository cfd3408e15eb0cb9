package element_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/databus"
	"github.com/flume-dsp/flume/element"
)

var stereo = flume.Format{
	SampleRate: 44100,
	Channels:   2,
	BitDepth:   flume.BitDepth16,
}

// drainSine steps the generator to completion and collects one channel.
func drainSine(t *testing.T, s *element.Sine, bus flume.Bus) []float64 {
	t.Helper()
	var got []float64
	for {
		outcome, err := s.Step()
		require.NoError(t, err)
		if outcome == flume.Complete {
			return got
		}
		for {
			c, err := bus.TryReceive()
			if err != nil {
				break
			}
			got = append(got, c.Channel(0)...)
		}
	}
}

func TestSine(t *testing.T) {
	s := &element.Sine{
		Frequency:   441,
		Amplitude:   0.5,
		Format:      stereo,
		Limit:       1000,
		ChunkFrames: 256,
	}
	bus := databus.NewRing(2)
	s.BindOutput(bus)
	require.NoError(t, s.Configure(flume.Format{}))

	got := drainSine(t, s, bus)
	require.Len(t, got, 1000)

	step := 2 * math.Pi * 441 / 44100
	for i, v := range got {
		assert.InDelta(t, 0.5*math.Sin(step*float64(i)), v, 1e-9)
	}
}

func TestSinePositions(t *testing.T) {
	s := &element.Sine{
		Frequency:   100,
		Amplitude:   1,
		Format:      stereo,
		Limit:       100,
		ChunkFrames: 40,
	}
	bus := databus.NewRing(4)
	s.BindOutput(bus)
	require.NoError(t, s.Configure(flume.Format{}))

	var positions []flume.Position
	var lengths []int
	for {
		outcome, err := s.Step()
		require.NoError(t, err)
		if outcome == flume.Complete {
			break
		}
		for {
			c, err := bus.TryReceive()
			if err != nil {
				break
			}
			positions = append(positions, c.Position())
			lengths = append(lengths, c.Len())
		}
	}
	assert.Equal(t, []flume.Position{flume.First, flume.Middle, flume.Last}, positions)
	assert.Equal(t, []int{40, 40, 20}, lengths)
}

func TestSineSingleChunk(t *testing.T) {
	s := &element.Sine{
		Frequency:   100,
		Amplitude:   1,
		Format:      stereo,
		Limit:       16,
		ChunkFrames: 64,
	}
	bus := databus.NewRing(1)
	s.BindOutput(bus)
	require.NoError(t, s.Configure(flume.Format{}))

	outcome, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)

	c, err := bus.TryReceive()
	require.NoError(t, err)
	assert.Equal(t, flume.Single, c.Position())
	assert.Equal(t, 16, c.Len())

	outcome, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Complete, outcome)
}

func TestSineBackpressure(t *testing.T) {
	s := &element.Sine{
		Frequency:   100,
		Amplitude:   1,
		Format:      stereo,
		Limit:       1000,
		ChunkFrames: 64,
	}
	bus := databus.NewRing(1)
	s.BindOutput(bus)
	require.NoError(t, s.Configure(flume.Format{}))

	outcome, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)

	// bus full: the generator yields instead of dropping.
	outcome, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Blocked, outcome)

	_, err = bus.TryReceive()
	require.NoError(t, err)
	outcome, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, flume.Progressed, outcome)
}

func TestSineValidation(t *testing.T) {
	bus := databus.NewRing(1)

	s := &element.Sine{Frequency: 0, Amplitude: 1, Format: stereo}
	s.BindOutput(bus)
	assert.Error(t, s.Configure(flume.Format{}))

	s = &element.Sine{Frequency: 440, Amplitude: 1}
	s.BindOutput(bus)
	assert.Error(t, s.Configure(flume.Format{}))
}

func TestSinePooled(t *testing.T) {
	// with a pool bus the generator recycles blocks instead of
	// allocating.
	pool := databus.NewPool(stereo, 2, 64)
	s := &element.Sine{
		Frequency:   441,
		Amplitude:   1,
		Format:      stereo,
		Limit:       640,
		ChunkFrames: 64,
	}
	s.BindOutput(pool)
	require.NoError(t, s.Configure(flume.Format{}))

	total := 0
	for {
		outcome, err := s.Step()
		require.NoError(t, err)
		if outcome == flume.Complete {
			break
		}
		for {
			c, err := pool.TryReceive()
			if err != nil {
				break
			}
			total += c.Len()
			pool.Release(c)
		}
	}
	assert.Equal(t, 640, total)
}
