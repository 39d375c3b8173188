// ABOUTME: PCM sample quantization
// ABOUTME: Interleaves float blocks into 16-bit or 24-bit integer samples
package encode

import (
	"fmt"
	"math"

	"github.com/harperreed/euphony-go/pkg/audio"
)

// checkBitDepth rejects depths the encoders cannot write
func checkBitDepth(bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", bitDepth)
	}
	return nil
}

// quantize converts a sample to a signed integer of bitDepth with clipping
func quantize(sample float32, bitDepth int) int {
	if bitDepth == 16 {
		return int(audio.SampleToInt16(sample))
	}
	v := math.Round(float64(sample) * audio.Max24Bit)
	return int(max(audio.Min24Bit, min(audio.Max24Bit, v)))
}

// Interleave quantizes a planar block into dst, reusing its capacity
func Interleave(block [][]float32, bitDepth int, dst []int) []int {
	if len(block) == 0 {
		return dst[:0]
	}
	channels := len(block)
	frames := len(block[0])
	if cap(dst) < frames*channels {
		dst = make([]int, frames*channels)
	}
	dst = dst[:frames*channels]

	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			var s float32
			if f < len(block[ch]) {
				s = block[ch][f]
			}
			dst[f*channels+ch] = quantize(s, bitDepth)
		}
	}
	return dst
}
