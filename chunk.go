package flume

// Position marks where a chunk belongs in its stream. Sinks and encoders
// use it to finalize output when the last chunk arrives.
type Position uint8

const (
	// Single is a complete stream in one chunk.
	Single Position = iota
	// First is the opening chunk of a stream.
	First
	// Middle is any chunk between the first and the last.
	Middle
	// Last is the closing chunk of a stream.
	Last
)

func (p Position) String() string {
	switch p {
	case Single:
		return "single"
	case First:
		return "first"
	case Middle:
		return "middle"
	case Last:
		return "last"
	}
	return "unknown"
}

// Chunk is the unit of transfer between elements: a bounded block of
// samples with an associated format. Decoded audio lives in non-interleaved
// float64 channels; encoded audio travels as raw bytes. Ownership of a
// chunk transfers fully from producer to consumer on a successful send.
type Chunk struct {
	format Format
	data   [][]float64
	length int
	raw    []byte
	pos    Position
}

// NewChunk allocates a chunk for up to frames samples per channel.
func NewChunk(format Format, frames int) *Chunk {
	data := make([][]float64, format.Channels)
	for i := range data {
		data[i] = make([]float64, frames)
	}
	return &Chunk{format: format, data: data}
}

// NewRawChunk allocates a chunk carrying up to size bytes of encoded data.
func NewRawChunk(format Format, size int) *Chunk {
	return &Chunk{format: format, raw: make([]byte, 0, size)}
}

// Format returns the chunk's format descriptor.
func (c *Chunk) Format() Format { return c.format }

// Len returns the number of valid frames per channel.
func (c *Chunk) Len() int { return c.length }

// Cap returns the maximum number of frames the chunk can hold.
func (c *Chunk) Cap() int {
	if len(c.data) == 0 {
		return 0
	}
	return len(c.data[0])
}

// Position returns the chunk's position in the stream.
func (c *Chunk) Position() Position { return c.pos }

// SetPosition marks the chunk's position in the stream.
func (c *Chunk) SetPosition(p Position) { c.pos = p }

// Samples returns the valid region of the chunk as non-interleaved
// channels. The consumer owns the chunk and may mutate samples in place.
func (c *Chunk) Samples() [][]float64 {
	s := make([][]float64, len(c.data))
	for i := range c.data {
		s[i] = c.data[i][:c.length]
	}
	return s
}

// Channel returns the valid region of a single channel.
func (c *Chunk) Channel(i int) []float64 { return c.data[i][:c.length] }

// SetLen truncates or extends the valid region, capped by capacity.
func (c *Chunk) SetLen(frames int) {
	if frames < 0 {
		frames = 0
	}
	if max := c.Cap(); frames > max {
		frames = max
	}
	c.length = frames
}

// Raw returns the encoded payload of the chunk.
func (c *Chunk) Raw() []byte { return c.raw }

// PutRaw replaces the encoded payload of the chunk.
func (c *Chunk) PutRaw(b []byte) {
	c.raw = append(c.raw[:0], b...)
}

// CopyFrom copies the valid region, position and raw payload of src.
// Frames beyond the receiver's capacity are dropped.
func (c *Chunk) CopyFrom(src *Chunk) {
	frames := src.length
	if max := c.Cap(); frames > max {
		frames = max
	}
	for i := range c.data {
		if i >= len(src.data) {
			break
		}
		copy(c.data[i][:frames], src.data[i][:frames])
	}
	c.length = frames
	c.raw = append(c.raw[:0], src.raw...)
	c.pos = src.pos
}

// Clear zeroes the chunk so it can be recycled by a producer.
func (c *Chunk) Clear() {
	for i := range c.data {
		for j := range c.data[i] {
			c.data[i][j] = 0
		}
	}
	c.length = 0
	c.raw = c.raw[:0]
	c.pos = Single
}

// PutInterleavedInts fills the chunk from interleaved integer samples,
// converting to the float domain with the chunk's bit depth.
func (c *Chunk) PutInterleavedInts(ints []int) {
	channels := c.format.Channels
	if channels == 0 {
		return
	}
	devider := c.format.BitDepth.devider()
	frames := len(ints) / channels
	if max := c.Cap(); frames > max {
		frames = max
	}
	for i := 0; i < channels; i++ {
		for j := 0; j < frames; j++ {
			c.data[i][j] = float64(ints[j*channels+i]) / devider
		}
	}
	c.length = frames
}

// InterleavedInts exports the valid region of the chunk as interleaved
// integer samples in the chunk's bit depth. dst is reused when it has
// enough capacity, so device adapters can keep a scratch buffer.
func (c *Chunk) InterleavedInts(dst []int) []int {
	channels := c.format.Channels
	n := c.length * channels
	if cap(dst) < n {
		dst = make([]int, n)
	}
	dst = dst[:n]
	multiplier := c.format.BitDepth.multiplier()
	for i := 0; i < channels; i++ {
		for j := 0; j < c.length; j++ {
			dst[j*channels+i] = int(c.data[i][j] * multiplier)
		}
	}
	return dst
}

// CopyInterleavedFloat32 exports the valid region into an interleaved
// float32 buffer, the layout hardware playback streams expect. It returns
// the number of frames copied.
func (c *Chunk) CopyInterleavedFloat32(dst []float32) int {
	channels := c.format.Channels
	frames := c.length
	if channels == 0 {
		return 0
	}
	if max := len(dst) / channels; frames > max {
		frames = max
	}
	for i := 0; i < channels; i++ {
		for j := 0; j < frames; j++ {
			dst[j*channels+i] = float32(c.data[i][j])
		}
	}
	return frames
}

// PutInterleavedFloat32 fills the chunk from an interleaved float32
// buffer, the layout hardware capture streams produce.
func (c *Chunk) PutInterleavedFloat32(src []float32) {
	channels := c.format.Channels
	if channels == 0 {
		return
	}
	frames := len(src) / channels
	if max := c.Cap(); frames > max {
		frames = max
	}
	for i := 0; i < channels; i++ {
		for j := 0; j < frames; j++ {
			c.data[i][j] = float64(src[j*channels+i])
		}
	}
	c.length = frames
}
