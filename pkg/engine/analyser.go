// ABOUTME: Analyser node
// ABOUTME: Passes audio through while exposing windowed FFT and time-domain snapshots
package engine

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	MinFFTSize = 32
	MaxFFTSize = 32768

	DefaultFFTSize               = 2048
	DefaultMinDecibels           = -100.0
	DefaultMaxDecibels           = -30.0
	DefaultSmoothingTimeConstant = 0.8
)

// AnalyserNode is a pass-through node that records the most recent
// MaxFFTSize mono samples and computes a smoothed magnitude spectrum on demand.
type AnalyserNode struct {
	node

	fftSize   int
	minDb     float64
	maxDb     float64
	smoothing float64

	// history is a ring of downmixed samples; head is the next write index
	history []float32
	head    int

	fft        *fourier.FFT
	window     []float64
	windowed   []float64
	coeffs     []complex128
	smoothed   []float64
	decibels   []float64
	spectrumAt int64
	renderedTo int64
}

func newAnalyser(c *Context) *AnalyserNode {
	a := &AnalyserNode{
		minDb:      DefaultMinDecibels,
		maxDb:      DefaultMaxDecibels,
		smoothing:  DefaultSmoothingTimeConstant,
		history:    make([]float32, MaxFFTSize),
		spectrumAt: -1,
	}
	a.node = newNode(c, a, 1, 1)
	a.resize(DefaultFFTSize)
	return a
}

// IsValidFFTSize reports whether n is a power of two in [MinFFTSize, MaxFFTSize]
func IsValidFFTSize(n int) bool {
	return n >= MinFFTSize && n <= MaxFFTSize && n&(n-1) == 0
}

// resize reallocates FFT state; caller holds ctx.mu or owns a
func (a *AnalyserNode) resize(n int) {
	a.fftSize = n
	a.fft = fourier.NewFFT(n)
	a.window = blackman(n)
	a.windowed = make([]float64, n)
	a.coeffs = make([]complex128, n/2+1)
	a.smoothed = make([]float64, n/2)
	a.decibels = make([]float64, n/2)
	a.spectrumAt = -1
}

// blackman returns the Blackman window with alpha 0.16
func blackman(n int) []float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}

// FFTSize returns the analysis window size
func (a *AnalyserNode) FFTSize() int {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	return a.fftSize
}

// SetFFTSize changes the window size; smoothing history is reset
func (a *AnalyserNode) SetFFTSize(n int) error {
	if !IsValidFFTSize(n) {
		return fmt.Errorf("%w: fft size %d must be a power of two in [%d, %d]", ErrIndexSize, n, MinFFTSize, MaxFFTSize)
	}
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	if n != a.fftSize {
		a.resize(n)
	}
	return nil
}

// FrequencyBinCount is half the FFT size
func (a *AnalyserNode) FrequencyBinCount() int {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	return a.fftSize / 2
}

// MinDecibels returns the byte-scaling floor
func (a *AnalyserNode) MinDecibels() float64 {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	return a.minDb
}

// MaxDecibels returns the byte-scaling ceiling
func (a *AnalyserNode) MaxDecibels() float64 {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	return a.maxDb
}

// SetDecibelRange sets both bounds at once; min must be below max
func (a *AnalyserNode) SetDecibelRange(minDb, maxDb float64) error {
	if !(minDb < maxDb) {
		return fmt.Errorf("%w: min decibels %v must be below max decibels %v", ErrIndexSize, minDb, maxDb)
	}
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	a.minDb, a.maxDb = minDb, maxDb
	return nil
}

// SetMinDecibels sets the floor; it must stay below the current ceiling
func (a *AnalyserNode) SetMinDecibels(v float64) error {
	return a.SetDecibelRange(v, a.MaxDecibels())
}

// SetMaxDecibels sets the ceiling; it must stay above the current floor
func (a *AnalyserNode) SetMaxDecibels(v float64) error {
	return a.SetDecibelRange(a.MinDecibels(), v)
}

// SmoothingTimeConstant returns the averaging constant
func (a *AnalyserNode) SmoothingTimeConstant() float64 {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	return a.smoothing
}

// SetSmoothingTimeConstant sets the averaging constant in [0, 1]
func (a *AnalyserNode) SetSmoothingTimeConstant(v float64) error {
	if v < 0 || v > 1 || math.IsNaN(v) {
		return fmt.Errorf("%w: smoothing %v must be in [0, 1]", ErrIndexSize, v)
	}
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	a.smoothing = v
	return nil
}

func (a *AnalyserNode) process(in [][]float32, frame int64, out [][]float32) {
	channels := len(in)
	frames := len(out[0])
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := range in {
			sum += in[ch][i]
			out[ch][i] = in[ch][i]
		}
		a.history[a.head] = sum / float32(channels)
		a.head = (a.head + 1) % len(a.history)
	}
	a.renderedTo = frame + int64(frames)
}

// timeDomain copies the newest len(dst) samples, oldest first; caller holds ctx.mu
func (a *AnalyserNode) timeDomain(dst []float64) {
	n := len(dst)
	start := (a.head - n + len(a.history)) % len(a.history)
	for i := range dst {
		dst[i] = float64(a.history[(start+i)%len(a.history)])
	}
}

// updateSpectrum recomputes smoothed decibels at most once per rendered
// quantum; caller holds ctx.mu
func (a *AnalyserNode) updateSpectrum() {
	if a.spectrumAt == a.renderedTo {
		return
	}
	a.spectrumAt = a.renderedTo

	a.timeDomain(a.windowed)
	for i := range a.windowed {
		a.windowed[i] *= a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.windowed)

	scale := 1 / float64(a.fftSize)
	for k := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[k]) * scale
		s := a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		a.smoothed[k] = s
		a.decibels[k] = 20 * math.Log10(s)
	}
}

// GetFloatFrequencyData writes decibel magnitudes into dst
func (a *AnalyserNode) GetFloatFrequencyData(dst []float32) {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()

	a.updateSpectrum()
	for i := 0; i < len(dst) && i < len(a.decibels); i++ {
		dst[i] = float32(a.decibels[i])
	}
}

// GetByteFrequencyData writes magnitudes scaled from [min, max] decibels to [0, 255]
func (a *AnalyserNode) GetByteFrequencyData(dst []byte) {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()

	a.updateSpectrum()
	rangeDb := a.maxDb - a.minDb
	for i := 0; i < len(dst) && i < len(a.decibels); i++ {
		v := math.Floor(255 / rangeDb * (a.decibels[i] - a.minDb))
		dst[i] = clampByte(v)
	}
}

// GetFloatTimeDomainData writes the newest samples into dst
func (a *AnalyserNode) GetFloatTimeDomainData(dst []float32) {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()

	n := min(len(dst), a.fftSize)
	buf := make([]float64, n)
	a.timeDomain(buf)
	for i, v := range buf {
		dst[i] = float32(v)
	}
}

// GetByteTimeDomainData writes the newest samples mapped from [-1, 1] to [0, 255]
func (a *AnalyserNode) GetByteTimeDomainData(dst []byte) {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()

	n := min(len(dst), a.fftSize)
	buf := make([]float64, n)
	a.timeDomain(buf)
	for i, v := range buf {
		dst[i] = clampByte(math.Floor(128 * (1 + v)))
	}
}

func clampByte(v float64) byte {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return byte(v)
	}
}
