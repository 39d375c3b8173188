// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 audio to planar float samples via go-mp3
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/harperreed/euphony-go/pkg/audio"
)

// DecodeMP3 decodes an entire MP3 payload
func DecodeMP3(data []byte) (*audio.PCM, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	// go-mp3 always produces 16-bit little-endian stereo
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	format := audio.Format{
		Codec:      "mp3",
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}

	frames := len(raw) / 4
	if frames == 0 {
		return nil, errors.New("no mp3 frames decoded")
	}
	pcm := audio.NewPCM(format, frames)
	for f := 0; f < frames; f++ {
		left := int16(binary.LittleEndian.Uint16(raw[f*4:]))
		right := int16(binary.LittleEndian.Uint16(raw[f*4+2:]))
		pcm.Channels[0][f] = audio.SampleFromInt16(left)
		pcm.Channels[1][f] = audio.SampleFromInt16(right)
	}

	return pcm, nil
}
