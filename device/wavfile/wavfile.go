// Package wavfile provides wav file stream devices built on
// github.com/go-audio/wav.
package wavfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/device"
)

// ErrUnsupportedBitDepth is returned when the wav bit depth is not 16
// or 32 bit.
var ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")

// Source reads samples from a wav file. It cannot be reused after the
// file is exhausted.
type Source struct {
	path    string
	file    *os.File
	decoder *wav.Decoder
	format  flume.Format
	buf     *audio.IntBuffer
	ints    []int
}

// NewSource opens the wav file at path and reads its header.
func NewSource(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &device.Error{Device: "wav", Op: "open", Err: err}
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("wav is not valid, failed to close %v: %w", path, err)
		}
		return nil, &device.Error{Device: "wav", Op: "open", Err: errors.New("wav is not valid")}
	}
	bitDepth := flume.BitDepth(decoder.BitDepth)
	if bitDepth != flume.BitDepth16 && bitDepth != flume.BitDepth32 {
		_ = file.Close()
		return nil, ErrUnsupportedBitDepth
	}

	return &Source{
		path:    path,
		file:    file,
		decoder: decoder,
		format: flume.Format{
			SampleRate:  int(decoder.SampleRate),
			Channels:    decoder.Format().NumChannels,
			BitDepth:    bitDepth,
			Interleaved: true,
		},
	}, nil
}

// Format implements device.Formatted.
func (s *Source) Format() flume.Format { return s.format }

// ReadInto implements device.Reader. It decodes the next chunk of PCM
// frames and returns io.EOF at end of file.
func (s *Source) ReadInto(c *flume.Chunk) (int, error) {
	size := c.Cap() * s.format.Channels
	if s.buf == nil || len(s.buf.Data) != size {
		s.buf = &audio.IntBuffer{
			Format:         s.decoder.Format(),
			Data:           make([]int, size),
			SourceBitDepth: int(s.format.BitDepth),
		}
	}
	read, err := s.decoder.PCMBuffer(s.buf)
	if err != nil {
		return 0, &device.Error{Device: "wav", Op: "read", Err: err}
	}
	if read == 0 {
		return 0, io.EOF
	}
	s.ints = s.buf.Data[:read]
	frames := read / s.format.Channels
	c.PutInterleavedInts(s.ints)
	if frames < c.Cap() {
		return frames, io.EOF
	}
	return frames, nil
}

// Close implements io.Closer.
func (s *Source) Close() error { return s.file.Close() }

// Sink writes samples to a wav file.
type Sink struct {
	path     string
	bitDepth flume.BitDepth
	file     *os.File
	encoder  *wav.Encoder
	buf      *audio.IntBuffer
	ints     []int
}

// NewSink creates a wav sink for the given path and bit depth. The
// file is created on the first write.
func NewSink(path string, bitDepth flume.BitDepth) (*Sink, error) {
	if bitDepth != flume.BitDepth16 && bitDepth != flume.BitDepth32 {
		return nil, ErrUnsupportedBitDepth
	}
	return &Sink{path: path, bitDepth: bitDepth}, nil
}

// WriteFrom implements device.Writer.
func (s *Sink) WriteFrom(c *flume.Chunk) (int, error) {
	format := c.Format()
	if s.encoder == nil {
		f, err := os.Create(s.path)
		if err != nil {
			return 0, &device.Error{Device: "wav", Op: "create", Err: err}
		}
		s.file = f
		s.encoder = wav.NewEncoder(f, format.SampleRate, int(s.bitDepth), format.Channels, 1)
		s.buf = &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: format.Channels,
				SampleRate:  format.SampleRate,
			},
			SourceBitDepth: int(s.bitDepth),
		}
	}
	size := c.Len() * format.Channels
	if cap(s.ints) < size {
		s.ints = make([]int, size)
	}
	s.buf.Data = chunkInts(c, s.bitDepth, s.ints[:0])
	if err := s.encoder.Write(s.buf); err != nil {
		return 0, &device.Error{Device: "wav", Op: "write", Err: err}
	}
	return c.Len(), nil
}

// chunkInts converts the chunk samples to interleaved ints at the
// sink's bit depth regardless of the chunk format's own depth.
func chunkInts(c *flume.Chunk, depth flume.BitDepth, dst []int) []int {
	multiplier := float64(int(1) << (uint(depth) - 1))
	for frame := 0; frame < c.Len(); frame++ {
		for ch := 0; ch < c.Format().Channels; ch++ {
			dst = append(dst, int(c.Channel(ch)[frame]*multiplier))
		}
	}
	return dst
}

// Close implements io.Closer. It finalizes the wav header.
func (s *Sink) Close() error {
	if s.encoder == nil {
		return nil
	}
	if err := s.encoder.Close(); err != nil {
		return err
	}
	return s.file.Close()
}
