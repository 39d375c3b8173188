// ABOUTME: In-memory audio buffer
// ABOUTME: Planar float32 channels with bounded per-channel copy in and out
package engine

import (
	"fmt"
	"sync"

	"github.com/harperreed/euphony-go/pkg/audio"
)

// MaxChannels is the largest channel count a buffer may have
const MaxChannels = 32

// Buffer holds decoded audio, one slice per channel
type Buffer struct {
	mu         sync.RWMutex
	sampleRate int
	length     int
	channels   [][]float32
}

// NewBuffer allocates a silent buffer; length may be zero
func NewBuffer(channels, length, sampleRate int) (*Buffer, error) {
	if channels < 1 || channels > MaxChannels {
		return nil, fmt.Errorf("%w: channel count %d", ErrIndexSize, channels)
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: length %d", ErrIndexSize, length)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrIndexSize, sampleRate)
	}

	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, length)
	}
	return &Buffer{sampleRate: sampleRate, length: length, channels: data}, nil
}

// BufferFromPCM wraps decoded PCM without copying
func BufferFromPCM(pcm *audio.PCM) (*Buffer, error) {
	if err := pcm.Validate(); err != nil {
		return nil, err
	}
	if len(pcm.Channels) > MaxChannels {
		return nil, fmt.Errorf("%w: channel count %d", ErrIndexSize, len(pcm.Channels))
	}
	return &Buffer{
		sampleRate: pcm.Format.SampleRate,
		length:     pcm.Frames(),
		channels:   pcm.Channels,
	}, nil
}

// NumberOfChannels returns the channel count
func (b *Buffer) NumberOfChannels() int { return len(b.channels) }

// Length returns the number of frames per channel
func (b *Buffer) Length() int { return b.length }

// SampleRate returns the buffer's sample rate
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Duration returns the length in seconds
func (b *Buffer) Duration() float64 {
	return float64(b.length) / float64(b.sampleRate)
}

// CopyFromChannel copies channel data starting at start into dst. It copies
// min(len(dst), Length()-start) frames and leaves the rest of dst untouched.
func (b *Buffer) CopyFromChannel(dst []float32, channel, start int) error {
	if channel < 0 || channel >= len(b.channels) {
		return fmt.Errorf("%w: channel %d", ErrIndexSize, channel)
	}
	if start < 0 || start > b.length {
		return fmt.Errorf("%w: start %d", ErrIndexSize, start)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	copy(dst, b.channels[channel][start:])
	return nil
}

// CopyToChannel copies src into the channel starting at start. It copies
// min(len(src), Length()-start) frames.
func (b *Buffer) CopyToChannel(src []float32, channel, start int) error {
	if channel < 0 || channel >= len(b.channels) {
		return fmt.Errorf("%w: channel %d", ErrIndexSize, channel)
	}
	if start < 0 || start > b.length {
		return fmt.Errorf("%w: start %d", ErrIndexSize, start)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.channels[channel][start:], src)
	return nil
}

// ChannelData returns a copy of one channel
func (b *Buffer) ChannelData(channel int) ([]float32, error) {
	out := make([]float32, b.length)
	if err := b.CopyFromChannel(out, channel, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// sample reads one frame of a channel, mapping mono to every output channel;
// caller holds b.mu for reading
func (b *Buffer) sample(channel, frame int) float32 {
	if len(b.channels) == 1 {
		return b.channels[0][frame]
	}
	if channel >= len(b.channels) {
		return 0
	}
	return b.channels[channel][frame]
}
