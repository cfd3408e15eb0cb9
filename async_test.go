package flume_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/databus"
	"github.com/flume-dsp/flume/internal/mock"
)

func TestAsyncCompletes(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := &mock.Source{Limit: 10000, Value: 0.5, Format: mockFormat, ChunkFrames: 64}
	pass := &mock.Transform{}
	sink := &mock.Sink{}
	p, err := flume.New(
		flume.WithNode("source", source),
		flume.WithNode("pass", pass),
		flume.WithNode("sink", sink),
		flume.WithLink("source", "pass", databus.NewRing(4)),
		flume.WithLink("pass", "sink", databus.NewRing(4)),
	)
	require.NoError(t, err)
	require.NoError(t, p.Configure())

	a, err := p.Async(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.Await())
	assert.Equal(t, flume.Stopped, p.State())

	_, produced := source.Count()
	_, consumed := sink.Count()
	assert.Equal(t, 10000, produced)
	assert.Equal(t, produced, consumed)
	for _, ch := range sink.Buffer() {
		for _, v := range ch {
			if v != 0.5 {
				t.Fatal("sample corrupted in transit")
			}
		}
	}
}

func TestAsyncStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := &mock.Source{Limit: 1 << 30, Value: 1, Format: mockFormat, ChunkFrames: 64}
	sink := &mock.Sink{Discard: true}
	p, err := flume.New(
		flume.WithNode("source", source),
		flume.WithNode("sink", sink),
		flume.WithLink("source", "sink", databus.NewRing(4)),
	)
	require.NoError(t, err)
	require.NoError(t, p.Configure())

	a, err := p.Async(context.Background())
	require.NoError(t, err)

	// let it stream, then stop mid-flight.
	for {
		if _, n := sink.Count(); n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, a.Stop())
	assert.Equal(t, flume.Stopped, p.State())
	assert.True(t, sink.Flushed)
}

func TestAsyncElementError(t *testing.T) {
	defer goleak.VerifyNone(t)

	stepErr := errors.New("element fault")
	source := &mock.Source{Limit: 1 << 30, Value: 1, Format: mockFormat, ChunkFrames: 64}
	pass := &mock.Transform{ErrorOnStep: stepErr}
	sink := &mock.Sink{Discard: true}
	p, err := flume.New(
		flume.WithNode("source", source),
		flume.WithNode("pass", pass),
		flume.WithNode("sink", sink),
		flume.WithLink("source", "pass", databus.NewRing(4)),
		flume.WithLink("pass", "sink", databus.NewRing(4)),
	)
	require.NoError(t, err)
	require.NoError(t, p.Configure())

	a, err := p.Async(context.Background())
	require.NoError(t, err)

	err = a.Await()
	require.Error(t, err)
	assert.ErrorIs(t, err, stepErr)

	var elemErr *flume.ElementError
	require.True(t, errors.As(err, &elemErr))
	assert.Equal(t, "pass", elemErr.Element)
	assert.Equal(t, flume.Stopped, p.State())
}

func TestAsyncCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := &mock.Source{Limit: 1 << 30, Value: 1, Format: mockFormat, ChunkFrames: 64}
	sink := &mock.Sink{Discard: true}
	p, err := flume.New(
		flume.WithNode("source", source),
		flume.WithNode("sink", sink),
		flume.WithLink("source", "sink", databus.NewRing(4)),
	)
	require.NoError(t, err)
	require.NoError(t, p.Configure())

	ctx, cancel := context.WithCancel(context.Background())
	a, err := p.Async(ctx)
	require.NoError(t, err)

	cancel()
	require.NoError(t, a.Await())
	assert.Equal(t, flume.Stopped, p.State())
}

func TestAsyncRejectsCooperativeControls(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := &mock.Source{Limit: 1 << 30, Value: 1, Format: mockFormat, ChunkFrames: 64}
	sink := &mock.Sink{Discard: true}
	p, err := flume.New(
		flume.WithNode("source", source),
		flume.WithNode("sink", sink),
		flume.WithLink("source", "sink", databus.NewRing(4)),
	)
	require.NoError(t, err)
	require.NoError(t, p.Configure())

	a, err := p.Async(context.Background())
	require.NoError(t, err)

	// the concurrent driver owns the pipeline; stepping it from the
	// outside is an error.
	_, err = p.Cycle()
	assert.Equal(t, flume.ErrInvalidState, err)
	assert.Equal(t, flume.ErrInvalidState, p.Pause())
	assert.Equal(t, flume.ErrInvalidState, p.Stop())

	require.NoError(t, a.Stop())
}
