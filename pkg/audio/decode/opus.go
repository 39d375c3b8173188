// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Opus files via libopusfile bindings (hraban/opus)
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/harperreed/euphony-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// libopusfile always decodes at 48kHz
const opusSampleRate = 48000

// DecodeOpus decodes an entire Ogg Opus payload
func DecodeOpus(data []byte) (*audio.PCM, error) {
	channels, err := opusChannels(data)
	if err != nil {
		return nil, err
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open opus stream: %w", err)
	}
	defer stream.Close()

	// 120ms at 48kHz is the largest Opus frame
	buf := make([]float32, 5760*channels)
	var interleaved []float32
	for {
		n, err := stream.ReadFloat32(buf)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}
		if n == 0 {
			break
		}
		interleaved = append(interleaved, buf[:n*channels]...)
	}

	format := audio.Format{
		Codec:      "opus",
		SampleRate: opusSampleRate,
		Channels:   channels,
		BitDepth:   16,
	}
	return audio.Deinterleave(format, interleaved), nil
}

// opusChannels reads the channel count from the OpusHead identification header
func opusChannels(data []byte) (int, error) {
	idx := bytes.Index(data, []byte("OpusHead"))
	if idx < 0 || idx+10 > len(data) {
		return 0, errors.New("missing OpusHead header")
	}
	channels := int(data[idx+9])
	if channels < 1 {
		return 0, fmt.Errorf("invalid opus channel count: %d", channels)
	}
	return channels, nil
}
