// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Converts whole decoded payloads to the engine sample rate
package resample

import "github.com/harperreed/euphony-go/pkg/audio"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	ratio      float64
}

// New creates a new resampler
func New(inputRate, outputRate int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// OutputFrames returns how many frames a channel of inputFrames becomes
func (r *Resampler) OutputFrames(inputFrames int) int {
	if inputFrames == 0 {
		return 0
	}
	return int(float64(inputFrames) / r.ratio)
}

// Channel resamples one planar channel using linear interpolation
func (r *Resampler) Channel(input []float32) []float32 {
	if r.inputRate == r.outputRate {
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}

	output := make([]float32, r.OutputFrames(len(input)))
	last := len(input) - 1
	for i := range output {
		pos := float64(i) * r.ratio
		idx := int(pos)
		if idx >= last {
			// Hold the final sample past the end of the input
			output[i] = input[last]
			continue
		}

		frac := pos - float64(idx)
		output[i] = float32(float64(input[idx])*(1.0-frac) + float64(input[idx+1])*frac)
	}

	return output
}

// PCM converts every channel of pcm to the output rate
func (r *Resampler) PCM(pcm *audio.PCM) *audio.PCM {
	format := pcm.Format
	format.SampleRate = r.outputRate

	out := &audio.PCM{Format: format, Channels: make([][]float32, len(pcm.Channels))}
	for ch, data := range pcm.Channels {
		out.Channels[ch] = r.Channel(data)
	}
	return out
}

// ToRate returns pcm unchanged when it is already at rate, otherwise a resampled copy
func ToRate(pcm *audio.PCM, rate int) *audio.PCM {
	if pcm.Format.SampleRate == rate {
		return pcm
	}
	return New(pcm.Format.SampleRate, rate).PCM(pcm)
}
