// ABOUTME: Frequency and waveform analyser
// ABOUTME: Log-scale band aggregation, mean amplitude and edge-triggered signal
package euphony

import (
	"math"
	"slices"
	"sync"

	"github.com/harperreed/euphony-go/pkg/engine"
)

const (
	DefaultThreshold     = 0.3
	DefaultNumberOfBands = 6
)

// byteSource is the raw data an Analyser pulls from the engine
type byteSource interface {
	GetByteFrequencyData(dst []byte)
	GetByteTimeDomainData(dst []byte)
}

// Frame is a copy of an Analyser's most recent results
type Frame struct {
	Frequency []float64
	Bands     []float64
	Amplitude float64
	Signal    bool
	Waveform  []float64
}

type handler struct {
	id int
	fn func()
}

// Analyser wraps a frequency node and a time-domain node in series. Results
// are recomputed from fresh engine data on every Update call.
type Analyser struct {
	mu sync.Mutex

	freqNode *engine.AnalyserNode
	waveNode *engine.AnalyserNode
	freqSrc  byteSource
	waveSrc  byteSource

	fftSize       int
	threshold     float64
	numberOfBands int
	bandIntervals []int
	binBand       []int

	raw       []byte
	frequency []float64
	bands     []float64
	amplitude float64
	signal    bool
	waveform  []float64

	onSignal  []handler
	offSignal []handler
	nextID    int
}

// NewAnalyser creates an analyser in ctx (nil means DefaultContext)
func NewAnalyser(ctx *engine.Context, opts AnalyserOptions) (*Analyser, error) {
	if err := validateStruct(&opts); err != nil {
		return nil, err
	}

	ctx = contextOrDefault(ctx)
	a := &Analyser{
		freqNode:  ctx.CreateAnalyser(),
		waveNode:  ctx.CreateAnalyser(),
		fftSize:   engine.DefaultFFTSize,
		threshold: DefaultThreshold,
	}
	a.freqSrc = a.freqNode
	a.waveSrc = a.waveNode
	if err := a.freqNode.Connect(a.waveNode); err != nil {
		return nil, err
	}

	a.numberOfBands = min(DefaultNumberOfBands, maxBands(a.fftSize))
	if opts.FFTSize != nil {
		if err := a.SetFFTSize(*opts.FFTSize); err != nil {
			return nil, err
		}
	}
	if opts.NumberOfBands != nil {
		if err := a.SetNumberOfBands(*opts.NumberOfBands); err != nil {
			return nil, err
		}
	}

	minDb, maxDb := engine.DefaultMinDecibels, engine.DefaultMaxDecibels
	if opts.MinDecibels != nil {
		minDb = *opts.MinDecibels
	}
	if opts.MaxDecibels != nil {
		maxDb = *opts.MaxDecibels
	}
	if err := a.setDecibelRange(minDb, maxDb); err != nil {
		return nil, err
	}
	if opts.SmoothingTimeConstant != nil {
		if err := a.SetSmoothingTimeConstant(*opts.SmoothingTimeConstant); err != nil {
			return nil, err
		}
	}
	if opts.Threshold != nil {
		if err := a.SetThreshold(*opts.Threshold); err != nil {
			return nil, err
		}
	}

	a.mu.Lock()
	a.reallocate()
	a.mu.Unlock()
	return a, nil
}

// maxBands is the natural-log bound on the band count
func maxBands(fftSize int) int {
	return int(math.Log(float64(fftSize)))
}

// Input is the frequency node
func (a *Analyser) Input() engine.Node { return a.freqNode }

// Output is the time-domain node
func (a *Analyser) Output() engine.Node { return a.waveNode }

// Connect routes the analyser output into dst
func (a *Analyser) Connect(dst Node) error { return connect(a.waveNode, dst) }

// Disconnect removes every outgoing connection
func (a *Analyser) Disconnect() { a.waveNode.Disconnect() }

// FFTSize returns the analysis window size
func (a *Analyser) FFTSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fftSize
}

// FrequencyBinCount is half the FFT size
func (a *Analyser) FrequencyBinCount() int {
	return a.FFTSize() / 2
}

// SetFFTSize changes the window size on both nodes. A band count above the
// new bound is lowered to it. Result arrays are reallocated.
func (a *Analyser) SetFFTSize(n int) error {
	if err := validateVar("fftSize", n, "pow2"); err != nil {
		return err
	}
	if err := a.freqNode.SetFFTSize(n); err != nil {
		return err
	}
	if err := a.waveNode.SetFFTSize(n); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.fftSize = n
	a.numberOfBands = max(1, min(a.numberOfBands, maxBands(n)))
	a.reallocate()
	return nil
}

// MinDecibels returns the byte-scaling floor
func (a *Analyser) MinDecibels() float64 { return a.freqNode.MinDecibels() }

// MaxDecibels returns the byte-scaling ceiling
func (a *Analyser) MaxDecibels() float64 { return a.freqNode.MaxDecibels() }

// SetMinDecibels fails unless v is strictly below the current ceiling
func (a *Analyser) SetMinDecibels(v float64) error {
	return a.setDecibelRange(v, a.MaxDecibels())
}

// SetMaxDecibels fails unless v is strictly above the current floor
func (a *Analyser) SetMaxDecibels(v float64) error {
	return a.setDecibelRange(a.MinDecibels(), v)
}

func (a *Analyser) setDecibelRange(minDb, maxDb float64) error {
	if !(minDb < maxDb) {
		return &ConfigurationError{
			Field:   "decibels",
			Value:   [2]float64{minDb, maxDb},
			Message: "min decibels must be less than max decibels",
		}
	}
	return a.freqNode.SetDecibelRange(minDb, maxDb)
}

// SmoothingTimeConstant returns the spectrum averaging constant
func (a *Analyser) SmoothingTimeConstant() float64 { return a.freqNode.SmoothingTimeConstant() }

// SetSmoothingTimeConstant sets the averaging constant in [0, 1]
func (a *Analyser) SetSmoothingTimeConstant(v float64) error {
	if err := validateVar("smoothingTimeConstant", v, "gte=0,lte=1"); err != nil {
		return err
	}
	return a.freqNode.SetSmoothingTimeConstant(v)
}

// Threshold returns the amplitude at which the signal turns on
func (a *Analyser) Threshold() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.threshold
}

// SetThreshold sets the signal threshold in [0, 1]
func (a *Analyser) SetThreshold(v float64) error {
	if err := validateVar("threshold", v, "gte=0,lte=1"); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.threshold = v
	return nil
}

// NumberOfBands returns the band count
func (a *Analyser) NumberOfBands() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.numberOfBands
}

// SetNumberOfBands sets the band count in [1, ln(fftSize)]
func (a *Analyser) SetNumberOfBands(n int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := validateVar("numberOfBands", n, "min=1"); err != nil {
		return err
	}
	if limit := maxBands(a.fftSize); n > limit {
		return &ConfigurationError{
			Field:   "numberOfBands",
			Value:   n,
			Message: "must be at most ln(fftSize)",
		}
	}
	a.numberOfBands = n
	a.reallocate()
	return nil
}

// reallocate discards results and rebuilds band intervals; caller holds mu
func (a *Analyser) reallocate() {
	bins := a.fftSize / 2
	a.raw = make([]byte, a.fftSize)
	a.frequency = make([]float64, bins)
	a.bands = make([]float64, a.numberOfBands)
	a.waveform = make([]float64, a.fftSize)
	a.amplitude = 0
	a.calcBandIntervals()
}

// calcBandIntervals builds geometric bin boundaries and the bin to band
// lookup; caller holds mu
func (a *Analyser) calcBandIntervals() {
	nb := a.numberOfBands
	factor := math.Exp(math.Log(float64(a.fftSize)) / float64(nb))

	a.bandIntervals = make([]int, max(nb-1, 0))
	for k := range a.bandIntervals {
		if k == 0 {
			a.bandIntervals[k] = 1
			continue
		}
		a.bandIntervals[k] = int(math.Floor(float64(a.bandIntervals[k-1]) * factor))
	}

	a.binBand = make([]int, a.fftSize/2)
	for bin := range a.binBand {
		a.binBand[bin] = bandIndex(a.bandIntervals, bin)
	}
}

// bandIndex is the first interval whose boundary exceeds bin, else the last band
func bandIndex(intervals []int, bin int) int {
	for k, boundary := range intervals {
		if boundary > bin {
			return k
		}
	}
	return len(intervals)
}

// UpdateFrequency pulls fresh spectrum bytes and recomputes frequency,
// bands, amplitude and signal. Signal handlers run after the update.
func (a *Analyser) UpdateFrequency() {
	a.mu.Lock()

	bins := len(a.frequency)
	raw := a.raw[:bins]
	a.freqSrc.GetByteFrequencyData(raw)

	clear(a.bands)
	sum := 0
	for i, v := range raw {
		sum += int(v)
		f := float64(v) / 255
		a.frequency[i] = f
		if b := a.binBand[i]; f > a.bands[b] {
			a.bands[b] = f
		}
	}
	a.amplitude = float64(sum) / float64(bins) / 255

	var fire []handler
	on := a.amplitude >= a.threshold
	switch {
	case on && !a.signal:
		a.signal = true
		fire = slices.Clone(a.onSignal)
	case !on && a.signal:
		a.signal = false
		fire = slices.Clone(a.offSignal)
	}
	a.mu.Unlock()

	for _, h := range fire {
		h.fn()
	}
}

// UpdateWaveform pulls fresh time-domain bytes and normalizes them with
// (raw-128)/128, so values span [-1, 0.9921875]
func (a *Analyser) UpdateWaveform() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.waveSrc.GetByteTimeDomainData(a.raw)
	for i, v := range a.raw {
		a.waveform[i] = (float64(v) - 128) / 128
	}
}

// OnSignal registers fn to run once each time amplitude rises to the
// threshold. The returned func unregisters it.
func (a *Analyser) OnSignal(fn func()) (remove func()) {
	return a.register(&a.onSignal, fn)
}

// OffSignal registers fn to run once each time amplitude falls below the
// threshold. The returned func unregisters it.
func (a *Analyser) OffSignal(fn func()) (remove func()) {
	return a.register(&a.offSignal, fn)
}

func (a *Analyser) register(list *[]handler, fn func()) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextID++
	id := a.nextID
	*list = append(*list, handler{id: id, fn: fn})

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		*list = slices.DeleteFunc(*list, func(h handler) bool { return h.id == id })
	}
}

// Frequency returns normalized bin magnitudes in [0, 1]
func (a *Analyser) Frequency() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.frequency)
}

// Bands returns per-band peak magnitudes
func (a *Analyser) Bands() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.bands)
}

// BandIntervals returns the lower bin boundaries of bands 1..n-1
func (a *Analyser) BandIntervals() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.bandIntervals)
}

// BandOf returns the band index a frequency bin belongs to
func (a *Analyser) BandOf(bin int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return bandIndex(a.bandIntervals, bin)
}

// Amplitude returns the mean normalized magnitude
func (a *Analyser) Amplitude() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.amplitude
}

// Signal reports whether amplitude is at or above the threshold
func (a *Analyser) Signal() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signal
}

// Waveform returns time-domain samples in [-1, 1)
func (a *Analyser) Waveform() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.waveform)
}

// Snapshot copies every result at once
func (a *Analyser) Snapshot() Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Frame{
		Frequency: slices.Clone(a.frequency),
		Bands:     slices.Clone(a.bands),
		Amplitude: a.amplitude,
		Signal:    a.signal,
		Waveform:  slices.Clone(a.waveform),
	}
}
