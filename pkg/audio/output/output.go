// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for the sinks the engine renders into
package output

import "github.com/harperreed/euphony-go/pkg/audio"

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Write outputs one block of planar samples (blocks until accepted)
	Write(block [][]float32) error

	// Close releases output resources
	Close() error
}

// interleave16 converts planar float samples to little-endian int16 bytes
func interleave16(block [][]float32, dst []byte) []byte {
	if len(block) == 0 {
		return dst[:0]
	}
	frames := len(block[0])
	channels := len(block)
	size := frames * channels * 2
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	i := 0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			s := uint16(audio.SampleToInt16(block[ch][f]))
			dst[i] = byte(s)
			dst[i+1] = byte(s >> 8)
			i += 2
		}
	}
	return dst
}
