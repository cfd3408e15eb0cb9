package flume_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/databus"
	"github.com/flume-dsp/flume/internal/mock"
)

var mockFormat = flume.Format{
	SampleRate: 44100,
	Channels:   2,
	BitDepth:   flume.BitDepth16,
}

func TestNewValidation(t *testing.T) {
	var tests = []struct {
		name    string
		options func() []flume.Option
	}{
		{
			name:    "no nodes",
			options: func() []flume.Option { return nil },
		},
		{
			name: "empty node name",
			options: func() []flume.Option {
				return []flume.Option{
					flume.WithNode("", &mock.Source{}),
				}
			},
		},
		{
			name: "nil element",
			options: func() []flume.Option {
				return []flume.Option{
					flume.WithNode("source", nil),
				}
			},
		},
		{
			name: "duplicate node",
			options: func() []flume.Option {
				return []flume.Option{
					flume.WithNode("source", &mock.Source{}),
					flume.WithNode("source", &mock.Source{}),
				}
			},
		},
		{
			name: "nil bus",
			options: func() []flume.Option {
				return []flume.Option{
					flume.WithNode("source", &mock.Source{}),
					flume.WithNode("sink", &mock.Sink{}),
					flume.WithLink("source", "sink", nil),
				}
			},
		},
		{
			name: "unknown link endpoint",
			options: func() []flume.Option {
				return []flume.Option{
					flume.WithNode("source", &mock.Source{}),
					flume.WithNode("sink", &mock.Sink{}),
					flume.WithLink("source", "missing", databus.NewRing(1)),
				}
			},
		},
		{
			name: "sink as emitter",
			options: func() []flume.Option {
				return []flume.Option{
					flume.WithNode("a", &mock.Sink{}),
					flume.WithNode("b", &mock.Sink{}),
					flume.WithLink("a", "b", databus.NewRing(1)),
				}
			},
		},
		{
			name: "source as receiver",
			options: func() []flume.Option {
				return []flume.Option{
					flume.WithNode("a", &mock.Source{}),
					flume.WithNode("b", &mock.Source{}),
					flume.WithLink("a", "b", databus.NewRing(1)),
				}
			},
		},
		{
			name: "double output",
			options: func() []flume.Option {
				return []flume.Option{
					flume.WithNode("source", &mock.Source{}),
					flume.WithNode("a", &mock.Sink{}),
					flume.WithNode("b", &mock.Sink{}),
					flume.WithLink("source", "a", databus.NewRing(1)),
					flume.WithLink("source", "b", databus.NewRing(1)),
				}
			},
		},
		{
			name: "cycle",
			options: func() []flume.Option {
				return []flume.Option{
					flume.WithNode("a", &mock.Transform{}),
					flume.WithNode("b", &mock.Transform{}),
					flume.WithLink("a", "b", databus.NewRing(1)),
					flume.WithLink("b", "a", databus.NewRing(1)),
				}
			},
		},
	}
	for _, c := range tests {
		t.Run(c.name, func(t *testing.T) {
			_, err := flume.New(c.options()...)
			assert.Error(t, err)
		})
	}
}

func TestFeedbackLinkAllowed(t *testing.T) {
	// a cycle through a feedback link is an intentional topology.
	_, err := flume.New(
		flume.WithNode("a", &mock.Transform{}),
		flume.WithNode("b", &mock.Transform{}),
		flume.WithLink("a", "b", databus.NewRing(1)),
		flume.WithFeedbackLink("b", "a", databus.NewSlot()),
	)
	assert.NoError(t, err)
}

func TestConfigure(t *testing.T) {
	source := &mock.Source{Limit: 128, Format: mockFormat}
	sink := &mock.Sink{}
	p, err := flume.New(
		flume.WithNode("source", source),
		flume.WithNode("sink", sink),
		flume.WithLink("source", "sink", databus.NewRing(2)),
	)
	require.NoError(t, err)
	assert.Equal(t, flume.Constructed, p.State())

	require.NoError(t, p.Configure())
	assert.Equal(t, flume.Configured, p.State())
	assert.True(t, source.Configured)
	assert.True(t, sink.Configured)

	// configuring again with the same topology is allowed.
	require.NoError(t, p.Configure())
	assert.Equal(t, flume.Configured, p.State())
}

func TestConfigureFailure(t *testing.T) {
	configureErr := errors.New("unsupported format")
	source := &mock.Source{Limit: 128, Format: mockFormat}
	sink := &mock.Sink{
		Hooks: mock.Hooks{ErrorOnConfigure: configureErr},
	}
	p, err := flume.New(
		flume.WithNode("source", source),
		flume.WithNode("sink", sink),
		flume.WithLink("source", "sink", databus.NewRing(2)),
	)
	require.NoError(t, err)

	err = p.Configure()
	require.Error(t, err)
	assert.ErrorIs(t, err, configureErr)
	// a failed negotiation never leaves a half-configured pipeline.
	assert.Equal(t, flume.Constructed, p.State())

	assert.Equal(t, flume.ErrInvalidState, p.Start())
}

func TestLifecycleOrder(t *testing.T) {
	p := testPipeline(t, 64)

	// operations out of order are rejected without side effects.
	assert.Equal(t, flume.ErrInvalidState, p.Start())

	require.NoError(t, p.Configure())
	assert.Equal(t, flume.ErrInvalidState, p.Resume())
	assert.Equal(t, flume.ErrInvalidState, p.Stop())
	assert.Equal(t, flume.ErrInvalidState, p.TearDown())

	require.NoError(t, p.Start())
	assert.Equal(t, flume.Running, p.State())
	assert.Equal(t, flume.ErrInvalidState, p.Start())

	require.NoError(t, p.Pause())
	assert.Equal(t, flume.Paused, p.State())
	require.NoError(t, p.Resume())
	assert.Equal(t, flume.Running, p.State())

	require.NoError(t, p.Stop())
	assert.Equal(t, flume.Stopped, p.State())

	require.NoError(t, p.TearDown())
	assert.Equal(t, flume.TornDown, p.State())
	assert.Equal(t, flume.ErrInvalidState, p.Configure())
}

func testPipeline(t *testing.T, frames int) *flume.Pipeline {
	t.Helper()
	p, err := flume.New(
		flume.WithNode("source", &mock.Source{Limit: frames, Value: 0.5, Format: mockFormat, ChunkFrames: 16}),
		flume.WithNode("pass", &mock.Transform{}),
		flume.WithNode("sink", &mock.Sink{}),
		flume.WithLink("source", "pass", databus.NewRing(2)),
		flume.WithLink("pass", "sink", databus.NewSlot()),
	)
	require.NoError(t, err)
	return p
}
