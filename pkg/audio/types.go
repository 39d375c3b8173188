// ABOUTME: Audio type definitions
// ABOUTME: Defines decoded PCM payloads and sample conversion helpers
package audio

import "fmt"

const (
	// 16-bit and 24-bit full scale
	Max16Bit = 32767
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes a decoded stream
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// PCM is a fully decoded payload, one float32 slice per channel in [-1, 1]
type PCM struct {
	Format   Format
	Channels [][]float32
}

// NewPCM allocates silent planar PCM
func NewPCM(format Format, frames int) *PCM {
	chans := make([][]float32, format.Channels)
	for i := range chans {
		chans[i] = make([]float32, frames)
	}
	return &PCM{Format: format, Channels: chans}
}

// Frames returns the number of sample frames per channel
func (p *PCM) Frames() int {
	if len(p.Channels) == 0 {
		return 0
	}
	return len(p.Channels[0])
}

// Validate checks that the payload is usable by the engine
func (p *PCM) Validate() error {
	if p.Format.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", p.Format.SampleRate)
	}
	if len(p.Channels) == 0 {
		return fmt.Errorf("no channels decoded")
	}
	n := len(p.Channels[0])
	for i, ch := range p.Channels {
		if len(ch) != n {
			return fmt.Errorf("channel %d has %d frames, expected %d", i, len(ch), n)
		}
	}
	return nil
}

// Deinterleave splits interleaved float32 samples into planar PCM
func Deinterleave(format Format, interleaved []float32) *PCM {
	frames := 0
	if format.Channels > 0 {
		frames = len(interleaved) / format.Channels
	}
	pcm := NewPCM(format, frames)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < format.Channels; ch++ {
			pcm.Channels[ch][f] = interleaved[f*format.Channels+ch]
		}
	}
	return pcm
}

// SampleFromInt normalizes a signed integer sample of the given bit depth
func SampleFromInt(sample int, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}

// SampleFromInt16 normalizes a 16-bit sample
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// SampleToInt16 converts a float sample to 16-bit with clipping
func SampleToInt16(sample float32) int16 {
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}
	// Scale to 16-bit range
	return int16(sample * Max16Bit)
}
