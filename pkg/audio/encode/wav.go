// ABOUTME: WAV file encoder
// ABOUTME: Writes rendered blocks as PCM WAV through go-audio/wav
package encode

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV encodes blocks to a PCM WAV stream. The header is finalized on Close,
// which is why the destination must be seekable.
type WAV struct {
	w        io.WriteSeeker
	bitDepth int
	enc      *wav.Encoder
	buf      *goaudio.IntBuffer
	channels int
	frames   int64
}

// NewWAV creates a WAV encoder writing bitDepth samples to w
func NewWAV(w io.WriteSeeker, bitDepth int) (*WAV, error) {
	if w == nil {
		return nil, errors.New("nil writer")
	}
	if err := checkBitDepth(bitDepth); err != nil {
		return nil, err
	}
	return &WAV{w: w, bitDepth: bitDepth}, nil
}

// Open writes nothing yet; go-audio/wav emits the header with the first samples
func (e *WAV) Open(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid format: %dHz, %d channels", sampleRate, channels)
	}
	if e.enc != nil {
		return errors.New("encoder already open")
	}

	e.channels = channels
	e.enc = wav.NewEncoder(e.w, sampleRate, e.bitDepth, channels, 1)
	e.buf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: e.bitDepth,
	}
	return nil
}

// Write quantizes and appends one block
func (e *WAV) Write(block [][]float32) error {
	if e.enc == nil {
		return errors.New("encoder not open")
	}
	if len(block) == 0 || len(block[0]) == 0 {
		return nil
	}
	if len(block) != e.channels {
		return fmt.Errorf("block has %d channels, expected %d", len(block), e.channels)
	}

	e.buf.Data = Interleave(block, e.bitDepth, e.buf.Data)
	if err := e.enc.Write(e.buf); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}
	e.frames += int64(len(block[0]))
	return nil
}

// Frames returns the number of frames written so far
func (e *WAV) Frames() int64 {
	return e.frames
}

// Close finalizes the WAV header. The underlying writer is left open.
func (e *WAV) Close() error {
	if e.enc == nil {
		return nil
	}
	err := e.enc.Close()
	e.enc = nil
	if err != nil {
		return fmt.Errorf("wav close failed: %w", err)
	}
	return nil
}
