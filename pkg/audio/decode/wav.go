// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE integer PCM via go-audio/wav
package decode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-audio/wav"
	"github.com/harperreed/euphony-go/pkg/audio"
)

// DecodeWAV decodes an entire WAV payload
func DecodeWAV(data []byte) (*audio.PCM, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("invalid wav file: %w", err)
		}
		return nil, errors.New("invalid wav file")
	}
	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("unsupported wav audio format: %d (only integer PCM)", d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}

	channels := int(d.NumChans)
	bitDepth := int(d.BitDepth)
	format := audio.Format{
		Codec:      "wav",
		SampleRate: int(d.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
	}

	frames := len(buf.Data) / channels
	pcm := audio.NewPCM(format, frames)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			v := buf.Data[f*channels+ch]
			if bitDepth == 8 {
				// 8-bit WAV is unsigned
				v -= 128
			}
			pcm.Channels[ch][f] = audio.SampleFromInt(v, bitDepth)
		}
	}

	return pcm, nil
}
