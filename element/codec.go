package element

import (
	"errors"

	"github.com/flume-dsp/flume"
	"github.com/flume-dsp/flume/codec"
)

// Decode turns encoded chunks into sample chunks using a codec.Decoder.
// Input chunks carry the encoded stream in their raw bytes; output
// chunks carry decoded samples in the decoder's declared format.
type Decode struct {
	// Decoder to run the stream through.
	Decoder codec.Decoder
	// ChunkFrames sizes decoded output chunks; defaults to 512 and is
	// raised to the decoder's MaxFrames so a full decoded packet
	// always fits.
	ChunkFrames int

	in      flume.Bus
	out     flume.Bus
	staged  *flume.Chunk
	pending *flume.Chunk
	format  flume.Format
	measure flume.MeasureFunc
}

// BindInput implements flume.Receiver.
func (d *Decode) BindInput(bus flume.Bus) { d.in = bus }

// BindOutput implements flume.Emitter.
func (d *Decode) BindOutput(bus flume.Bus) { d.out = bus }

// OutputFormat implements flume.Emitter.
func (d *Decode) OutputFormat() flume.Format { return d.format }

// SetMeasure implements flume.Meterable.
func (d *Decode) SetMeasure(m flume.MeasureFunc) { d.measure = m }

// Configure adopts the decoder's output format. The upstream format is
// ignored: encoded input has no sample format of its own.
func (d *Decode) Configure(flume.Format) error {
	if d.Decoder == nil {
		return errors.New("decoder not set")
	}
	d.format = d.Decoder.OutputFormat()
	if err := d.format.Validate(); err != nil {
		return err
	}
	if d.ChunkFrames == 0 {
		d.ChunkFrames = defaultChunkFrames
	}
	if max := d.Decoder.MaxFrames(); max > d.ChunkFrames {
		d.ChunkFrames = max
	}
	return nil
}

// Step decodes one chunk. A decoder asking for more input consumes the
// staged chunk and still counts as progress.
func (d *Decode) Step() (flume.Outcome, error) {
	if d.in == nil || d.out == nil {
		return flume.Starved, errors.New("buses not bound")
	}
	if d.pending != nil {
		return d.send()
	}
	if d.staged == nil {
		c, err := d.in.TryReceive()
		switch err {
		case nil:
			d.staged = c
		case flume.ErrEmpty:
			return flume.Starved, nil
		default:
			return flume.Complete, nil
		}
	}
	out, err := acquire(d.out, d.format, d.ChunkFrames)
	if err != nil {
		return flume.Blocked, nil
	}
	if err := fit(out, d.ChunkFrames); err != nil {
		release(d.out, out)
		return flume.Blocked, err
	}
	err = d.Decoder.Decode(d.staged, out)
	if err != nil {
		release(d.out, out)
		if codec.ErrNeedMoreInput(err) {
			// the decoder buffered the staged bytes internally.
			release(d.in, d.staged)
			d.staged = nil
			return flume.Progressed, nil
		}
		return flume.Starved, err
	}
	out.SetPosition(d.staged.Position())
	release(d.in, d.staged)
	d.staged = nil
	d.pending = out
	return d.send()
}

func (d *Decode) send() (flume.Outcome, error) {
	switch err := d.out.TrySend(d.pending); err {
	case nil:
		if d.measure != nil {
			d.measure(d.pending.Len())
		}
		d.pending = nil
		return flume.Progressed, nil
	case flume.ErrFull:
		return flume.Blocked, nil
	default:
		release(d.out, d.pending)
		d.pending = nil
		return flume.Complete, nil
	}
}

// Flush decodes whatever remains on the input bus and closes the
// output.
func (d *Decode) Flush() error {
	defer d.out.Close()
	for {
		outcome, err := d.Step()
		if err != nil {
			return err
		}
		if outcome != flume.Progressed {
			return nil
		}
	}
}

// Reset rewinds the decoder and discards buffered chunks.
func (d *Decode) Reset() error {
	if d.staged != nil {
		release(d.in, d.staged)
		d.staged = nil
	}
	if d.pending != nil {
		release(d.out, d.pending)
		d.pending = nil
	}
	return d.Decoder.Reset()
}

// Encode turns sample chunks into encoded chunks using a codec.Encoder.
// Output chunks carry the encoded stream in their raw bytes.
type Encode struct {
	// Encoder to run the stream through.
	Encoder codec.Encoder
	// RawBytes sizes the byte buffer of encoded output chunks;
	// defaults to 4096.
	RawBytes int

	in      flume.Bus
	out     flume.Bus
	staged  *flume.Chunk
	pending *flume.Chunk
	format  flume.Format
	measure flume.MeasureFunc
}

// BindInput implements flume.Receiver.
func (e *Encode) BindInput(bus flume.Bus) { e.in = bus }

// BindOutput implements flume.Emitter.
func (e *Encode) BindOutput(bus flume.Bus) { e.out = bus }

// OutputFormat implements flume.Emitter.
func (e *Encode) OutputFormat() flume.Format { return e.format }

// SetMeasure implements flume.Meterable.
func (e *Encode) SetMeasure(m flume.MeasureFunc) { e.measure = m }

// Configure validates the negotiated input format.
func (e *Encode) Configure(format flume.Format) error {
	if e.Encoder == nil {
		return errors.New("encoder not set")
	}
	if err := format.Validate(); err != nil {
		return err
	}
	if e.RawBytes == 0 {
		e.RawBytes = 4096
	}
	e.format = format
	return nil
}

// Step encodes one chunk.
func (e *Encode) Step() (flume.Outcome, error) {
	if e.in == nil || e.out == nil {
		return flume.Starved, errors.New("buses not bound")
	}
	if e.pending != nil {
		return e.send()
	}
	if e.staged == nil {
		c, err := e.in.TryReceive()
		switch err {
		case nil:
			e.staged = c
		case flume.ErrEmpty:
			return flume.Starved, nil
		default:
			return flume.Complete, nil
		}
	}
	out := flume.NewRawChunk(e.format, e.RawBytes)
	if err := e.Encoder.Encode(e.staged, out); err != nil {
		if codec.ErrNeedMoreInput(err) {
			release(e.in, e.staged)
			e.staged = nil
			return flume.Progressed, nil
		}
		return flume.Starved, err
	}
	out.SetPosition(e.staged.Position())
	release(e.in, e.staged)
	e.staged = nil
	e.pending = out
	return e.send()
}

func (e *Encode) send() (flume.Outcome, error) {
	switch err := e.out.TrySend(e.pending); err {
	case nil:
		if e.measure != nil {
			e.measure(e.pending.Len())
		}
		e.pending = nil
		return flume.Progressed, nil
	case flume.ErrFull:
		return flume.Blocked, nil
	default:
		e.pending = nil
		return flume.Complete, nil
	}
}

// Flush encodes whatever remains on the input bus and closes the
// output.
func (e *Encode) Flush() error {
	defer e.out.Close()
	for {
		outcome, err := e.Step()
		if err != nil {
			return err
		}
		if outcome != flume.Progressed {
			return nil
		}
	}
}

// Reset rewinds the encoder and discards buffered chunks.
func (e *Encode) Reset() error {
	if e.staged != nil {
		release(e.in, e.staged)
		e.staged = nil
	}
	e.pending = nil
	return e.Encoder.Reset()
}
