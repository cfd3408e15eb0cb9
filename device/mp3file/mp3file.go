// Package mp3file provides an mp3 file sink built on the lame encoder
// bindings.
package mp3file

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/viert/lame"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/device"
)

// Sink writes samples to an mp3 file.
type Sink struct {
	path    string
	bitRate int
	quality int
	file    *os.File
	wr      *lame.LameWriter
	ints    []int
}

// NewSink creates an mp3 sink for the given path. The file is created
// on the first write.
func NewSink(path string, bitRate, quality int) *Sink {
	return &Sink{path: path, bitRate: bitRate, quality: quality}
}

// WriteFrom implements device.Writer.
func (s *Sink) WriteFrom(c *flume.Chunk) (int, error) {
	format := c.Format()
	if s.wr == nil {
		f, err := os.Create(s.path)
		if err != nil {
			return 0, &device.Error{Device: "mp3", Op: "create", Err: err}
		}
		s.file = f
		s.wr = lame.NewWriter(f)
		s.wr.Encoder.SetBitrate(s.bitRate)
		s.wr.Encoder.SetQuality(s.quality)
		s.wr.Encoder.SetNumChannels(format.Channels)
		s.wr.Encoder.SetInSamplerate(format.SampleRate)
		s.wr.Encoder.SetMode(lame.JOINT_STEREO)
		s.wr.Encoder.SetVBR(lame.VBR_RH)
		s.wr.Encoder.InitParams()
	}

	// lame consumes 16 bit little endian pcm.
	s.ints = pcm16(c, s.ints[:0])
	buf := new(bytes.Buffer)
	for _, v := range s.ints {
		if err := binary.Write(buf, binary.LittleEndian, int16(v)); err != nil {
			return 0, err
		}
	}
	if _, err := s.wr.Write(buf.Bytes()); err != nil {
		return 0, &device.Error{Device: "mp3", Op: "write", Err: err}
	}
	return c.Len(), nil
}

func pcm16(c *flume.Chunk, dst []int) []int {
	const multiplier = 1 << 15
	for frame := 0; frame < c.Len(); frame++ {
		for ch := 0; ch < c.Format().Channels; ch++ {
			dst = append(dst, int(c.Channel(ch)[frame]*multiplier))
		}
	}
	return dst
}

// Close implements io.Closer. It flushes the encoder and closes the
// file.
func (s *Sink) Close() error {
	if s.wr == nil {
		return nil
	}
	if err := s.wr.Close(); err != nil {
		return err
	}
	return s.file.Close()
}
