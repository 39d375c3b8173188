// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Decodes Vorbis streams via jfreymuth/oggvorbis
package decode

import (
	"bytes"
	"fmt"

	"github.com/harperreed/euphony-go/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

// DecodeVorbis decodes an entire Ogg Vorbis payload
func DecodeVorbis(data []byte) (*audio.PCM, error) {
	samples, info, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vorbis decode error: %w", err)
	}

	format := audio.Format{
		Codec:      "vorbis",
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		BitDepth:   32,
	}

	return audio.Deinterleave(format, samples), nil
}
