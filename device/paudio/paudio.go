// Package paudio provides playback and capture stream devices on top of
// github.com/gordonklaus/portaudio.
package paudio

import (
	"github.com/gordonklaus/portaudio"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/device"
)

// Playback writes samples to the default output device.
type Playback struct {
	format flume.Format
	frames int
	buf    []float32
	stream *portaudio.Stream
}

// NewPlayback opens the default output stream for the given format.
// frames is the hardware buffer size per write.
func NewPlayback(format flume.Format, frames int) (*Playback, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, &device.Error{Device: "portaudio", Op: "init", Err: err}
	}
	p := &Playback{
		format: format,
		frames: frames,
		buf:    make([]float32, frames*format.Channels),
	}
	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), frames, &p.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, &device.Error{Device: "portaudio", Op: "open", Err: err}
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, &device.Error{Device: "portaudio", Op: "start", Err: err}
	}
	p.stream = stream
	return p, nil
}

// Format implements device.Formatted.
func (p *Playback) Format() flume.Format { return p.format }

// WriteFrom implements device.Writer. Chunks shorter than the hardware
// buffer are zero padded.
func (p *Playback) WriteFrom(c *flume.Chunk) (int, error) {
	copied := c.CopyInterleavedFloat32(p.buf)
	for i := copied * p.format.Channels; i < len(p.buf); i++ {
		p.buf[i] = 0
	}
	if err := p.stream.Write(); err != nil {
		return 0, &device.Error{Device: "portaudio", Op: "write", Err: err}
	}
	return copied, nil
}

// Close implements io.Closer. It stops the stream and terminates the
// portaudio api.
func (p *Playback) Close() error {
	if err := p.stream.Stop(); err != nil {
		return err
	}
	if err := p.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}

// Capture reads samples from the default input device.
type Capture struct {
	format flume.Format
	frames int
	buf    []float32
	stream *portaudio.Stream
}

// NewCapture opens the default input stream for the given format.
func NewCapture(format flume.Format, frames int) (*Capture, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, &device.Error{Device: "portaudio", Op: "init", Err: err}
	}
	c := &Capture{
		format: format,
		frames: frames,
		buf:    make([]float32, frames*format.Channels),
	}
	stream, err := portaudio.OpenDefaultStream(format.Channels, 0, float64(format.SampleRate), frames, &c.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, &device.Error{Device: "portaudio", Op: "open", Err: err}
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, &device.Error{Device: "portaudio", Op: "start", Err: err}
	}
	c.stream = stream
	return c, nil
}

// Format implements device.Formatted.
func (c *Capture) Format() flume.Format { return c.format }

// ReadInto implements device.Reader. Capture never ends on its own; the
// pipeline is stopped to end it.
func (c *Capture) ReadInto(dst *flume.Chunk) (int, error) {
	if err := c.stream.Read(); err != nil {
		return 0, &device.Error{Device: "portaudio", Op: "read", Err: err}
	}
	dst.PutInterleavedFloat32(c.buf)
	return dst.Len(), nil
}

// Close implements io.Closer.
func (c *Capture) Close() error {
	if err := c.stream.Stop(); err != nil {
		return err
	}
	if err := c.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
