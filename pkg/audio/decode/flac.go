// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames to planar float samples via mewkiz/flac
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/harperreed/euphony-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// DecodeFLAC decodes an entire FLAC payload
func DecodeFLAC(data []byte) (*audio.PCM, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC stream: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	format := audio.Format{
		Codec:      "flac",
		SampleRate: int(info.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
	}

	// NSamples is per channel and may be 0 when unknown
	pcm := audio.NewPCM(format, 0)
	for ch := range pcm.Channels {
		pcm.Channels[ch] = make([]float32, 0, int(info.NSamples))
	}

	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		for ch := 0; ch < channels; ch++ {
			for i := 0; i < int(frame.BlockSize); i++ {
				sample := frame.Subframes[ch].Samples[i]
				pcm.Channels[ch] = append(pcm.Channels[ch], audio.SampleFromInt(int(sample), bitDepth))
			}
		}
	}

	return pcm, nil
}
