// Package opusc provides opus codecs built on gopkg.in/hraban/opus.v2.
// Each encoded chunk carries exactly one opus packet in its raw bytes.
package opusc

import (
	"errors"
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/codec"
)

// maxFrameSamples bounds a decoded opus frame: 120ms at 48kHz.
const maxFrameSamples = 5760

// Decoder decodes opus packets into sample chunks.
type Decoder struct {
	dec      *opus.Decoder
	format   flume.Format
	pcm      []float32
	channels int
}

// NewDecoder creates an opus decoder for the given rate and channel
// count. Opus supports 8, 12, 16, 24 and 48 kHz and 1 or 2 channels.
func NewDecoder(sampleRate, channels int) (*Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, &codec.Error{Kind: codec.Unsupported, Err: fmt.Errorf("opus decoder: %w", err)}
	}
	return &Decoder{
		dec: dec,
		format: flume.Format{
			SampleRate:  sampleRate,
			Channels:    channels,
			BitDepth:    flume.BitDepth16,
			Interleaved: true,
		},
		pcm:      make([]float32, maxFrameSamples*channels),
		channels: channels,
	}, nil
}

// OutputFormat implements codec.Decoder.
func (d *Decoder) OutputFormat() flume.Format { return d.format }

// MaxFrames implements codec.Decoder. A packet decodes to at most
// 120ms of audio.
func (d *Decoder) MaxFrames() int { return maxFrameSamples }

// Decode implements codec.Decoder. The input chunk's raw bytes must
// hold one opus packet.
func (d *Decoder) Decode(in, out *flume.Chunk) error {
	data := in.Raw()
	if len(data) == 0 {
		return &codec.Error{Kind: codec.NeedMoreInput, Err: errors.New("empty packet")}
	}
	n, err := d.dec.DecodeFloat32(data, d.pcm)
	if err != nil {
		return &codec.Error{Kind: codec.Corrupt, Err: fmt.Errorf("opus decode: %w", err)}
	}
	if n > out.Cap() {
		return &codec.Error{Kind: codec.Unsupported, Err: fmt.Errorf("packet decodes to %d frames, chunk holds %d", n, out.Cap())}
	}
	out.PutInterleavedFloat32(d.pcm[:n*d.channels])
	return nil
}

// Reset implements codec.Decoder. The underlying decoder is stateless
// between packets as far as the stream contract goes, so reset only
// drops scratch state.
func (d *Decoder) Reset() error {
	for i := range d.pcm {
		d.pcm[i] = 0
	}
	return nil
}

// Encoder encodes sample chunks into opus packets. Opus requires fixed
// frame durations, so input chunks must carry 2.5, 5, 10, 20, 40 or
// 60ms of audio.
type Encoder struct {
	enc      *opus.Encoder
	pcm      []float32
	packet   []byte
	channels int
}

// NewEncoder creates an opus encoder for the given rate and channel
// count.
func NewEncoder(sampleRate, channels int) (*Encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, &codec.Error{Kind: codec.Unsupported, Err: fmt.Errorf("opus encoder: %w", err)}
	}
	return &Encoder{
		enc:      enc,
		pcm:      make([]float32, maxFrameSamples*channels),
		packet:   make([]byte, 4000),
		channels: channels,
	}, nil
}

// Bitrate sets the encoder bitrate in bits per second.
func (e *Encoder) Bitrate(bps int) error { return e.enc.SetBitrate(bps) }

// Encode implements codec.Encoder. One input chunk produces one opus
// packet in the output chunk's raw bytes.
func (e *Encoder) Encode(in, out *flume.Chunk) error {
	samples := in.Len() * e.channels
	if samples == 0 {
		return &codec.Error{Kind: codec.NeedMoreInput, Err: errors.New("empty chunk")}
	}
	if samples > len(e.pcm) {
		return &codec.Error{Kind: codec.Unsupported, Err: fmt.Errorf("chunk of %d frames exceeds opus frame bound", in.Len())}
	}
	in.CopyInterleavedFloat32(e.pcm[:samples])
	n, err := e.enc.EncodeFloat32(e.pcm[:samples], e.packet)
	if err != nil {
		return &codec.Error{Kind: codec.Corrupt, Err: fmt.Errorf("opus encode: %w", err)}
	}
	out.PutRaw(e.packet[:n])
	return nil
}

// Reset implements codec.Encoder.
func (e *Encoder) Reset() error {
	for i := range e.pcm {
		e.pcm[i] = 0
	}
	return nil
}
