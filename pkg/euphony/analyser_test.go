// ABOUTME: Tests for the analyser
// ABOUTME: Tests validation, band mapping, amplitude, edge-triggered signal and waveform
package euphony

import (
	"errors"
	"math"
	"testing"

	"github.com/harperreed/euphony-go/pkg/engine"
)

// fakeSource returns fixed bytes in place of engine data
type fakeSource struct {
	freq []byte
	wave []byte
}

func (f *fakeSource) GetByteFrequencyData(dst []byte)  { copy(dst, f.freq) }
func (f *fakeSource) GetByteTimeDomainData(dst []byte) { copy(dst, f.wave) }

func newTestAnalyser(t *testing.T, opts AnalyserOptions) (*Analyser, *fakeSource) {
	t.Helper()
	a, err := NewAnalyser(engine.NewContext(engine.Options{}), opts)
	if err != nil {
		t.Fatalf("failed to create analyser: %v", err)
	}
	fake := &fakeSource{}
	a.freqSrc = fake
	a.waveSrc = fake
	return a, fake
}

// bytesForAmplitude spreads amp*bins*255 over bins so the mean matches amp
func bytesForAmplitude(bins int, amp float64) []byte {
	total := int(math.Round(amp * float64(bins) * 255))
	out := make([]byte, bins)
	for i := range out {
		out[i] = byte(total / bins)
		if i < total%bins {
			out[i]++
		}
	}
	return out
}

func TestAnalyserSizesForEveryFFTSize(t *testing.T) {
	ctx := engine.NewContext(engine.Options{})
	for size := engine.MinFFTSize; size <= engine.MaxFFTSize; size *= 2 {
		a, err := NewAnalyser(ctx, AnalyserOptions{FFTSize: Int(size)})
		if err != nil {
			t.Fatalf("fft %d: %v", size, err)
		}
		if a.FrequencyBinCount() != size/2 {
			t.Errorf("fft %d: expected %d bins, got %d", size, size/2, a.FrequencyBinCount())
		}
		if n := len(a.Waveform()); n != size {
			t.Errorf("fft %d: expected waveform length %d, got %d", size, size, n)
		}
		if n := len(a.Frequency()); n != size/2 {
			t.Errorf("fft %d: expected frequency length %d, got %d", size, size/2, n)
		}
		if n := len(a.Bands()); n != a.NumberOfBands() {
			t.Errorf("fft %d: expected %d bands, got %d", size, a.NumberOfBands(), n)
		}
	}
}

func TestAnalyserDefaults(t *testing.T) {
	a, _ := newTestAnalyser(t, AnalyserOptions{})

	if a.FFTSize() != engine.DefaultFFTSize {
		t.Errorf("expected fft size %d, got %d", engine.DefaultFFTSize, a.FFTSize())
	}
	if a.Threshold() != DefaultThreshold {
		t.Errorf("expected threshold %v, got %v", DefaultThreshold, a.Threshold())
	}
	if a.NumberOfBands() != DefaultNumberOfBands {
		t.Errorf("expected %d bands, got %d", DefaultNumberOfBands, a.NumberOfBands())
	}
	if a.MinDecibels() != engine.DefaultMinDecibels || a.MaxDecibels() != engine.DefaultMaxDecibels {
		t.Errorf("unexpected decibel range [%v, %v]", a.MinDecibels(), a.MaxDecibels())
	}
	if a.SmoothingTimeConstant() != engine.DefaultSmoothingTimeConstant {
		t.Errorf("expected smoothing %v, got %v", engine.DefaultSmoothingTimeConstant, a.SmoothingTimeConstant())
	}
}

func TestAnalyserSetterValidation(t *testing.T) {
	tests := []struct {
		name string
		set  func(a *Analyser) error
	}{
		{"fft not power of two", func(a *Analyser) error { return a.SetFFTSize(1000) }},
		{"fft too small", func(a *Analyser) error { return a.SetFFTSize(16) }},
		{"fft too large", func(a *Analyser) error { return a.SetFFTSize(65536) }},
		{"min equal to max", func(a *Analyser) error { return a.SetMinDecibels(-30) }},
		{"min above max", func(a *Analyser) error { return a.SetMinDecibels(-10) }},
		{"max equal to min", func(a *Analyser) error { return a.SetMaxDecibels(-100) }},
		{"max below min", func(a *Analyser) error { return a.SetMaxDecibels(-120) }},
		{"smoothing negative", func(a *Analyser) error { return a.SetSmoothingTimeConstant(-0.1) }},
		{"smoothing above one", func(a *Analyser) error { return a.SetSmoothingTimeConstant(1.1) }},
		{"threshold above one", func(a *Analyser) error { return a.SetThreshold(2) }},
		{"threshold negative", func(a *Analyser) error { return a.SetThreshold(-0.5) }},
		{"no bands", func(a *Analyser) error { return a.SetNumberOfBands(0) }},
		{"bands above ln(fft)", func(a *Analyser) error { return a.SetNumberOfBands(8) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAnalyser(t, AnalyserOptions{})
			err := tt.set(a)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) || cerr.Message == "" {
				t.Errorf("expected a ConfigurationError with a message, got %#v", err)
			}
		})
	}
}

func TestAnalyserValidSetters(t *testing.T) {
	a, _ := newTestAnalyser(t, AnalyserOptions{})

	if err := a.SetNumberOfBands(7); err != nil {
		t.Errorf("7 bands at fft 2048 rejected: %v", err)
	}
	if err := a.SetMinDecibels(-90); err != nil || a.MinDecibels() != -90 {
		t.Errorf("SetMinDecibels(-90): %v, got %v", err, a.MinDecibels())
	}
	if err := a.SetMaxDecibels(-20); err != nil || a.MaxDecibels() != -20 {
		t.Errorf("SetMaxDecibels(-20): %v, got %v", err, a.MaxDecibels())
	}
	for _, v := range []float64{0, 0.5, 1} {
		if err := a.SetSmoothingTimeConstant(v); err != nil {
			t.Errorf("smoothing %v rejected: %v", v, err)
		}
		if err := a.SetThreshold(v); err != nil {
			t.Errorf("threshold %v rejected: %v", v, err)
		}
	}
}

func TestNewAnalyserRejectsInvalidOptions(t *testing.T) {
	ctx := engine.NewContext(engine.Options{})
	tests := []struct {
		name string
		opts AnalyserOptions
	}{
		{"fft size", AnalyserOptions{FFTSize: Int(100)}},
		{"threshold", AnalyserOptions{Threshold: Float64(1.5)}},
		{"smoothing", AnalyserOptions{SmoothingTimeConstant: Float64(-1)}},
		{"bands", AnalyserOptions{NumberOfBands: Int(0)}},
		{"bands for fft", AnalyserOptions{FFTSize: Int(32), NumberOfBands: Int(4)}},
		{"decibel order", AnalyserOptions{MinDecibels: Float64(-10), MaxDecibels: Float64(-20)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAnalyser(ctx, tt.opts); !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestBandIntervals(t *testing.T) {
	a, _ := newTestAnalyser(t, AnalyserOptions{FFTSize: Int(2048), NumberOfBands: Int(6)})

	expected := []int{1, 3, 10, 35, 124}
	got := a.BandIntervals()
	if len(got) != len(expected) {
		t.Fatalf("expected %d intervals, got %v", len(expected), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("interval %d: expected %d, got %d", i, expected[i], got[i])
		}
	}

	tests := []struct {
		bin  int
		band int
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 2},
		{34, 3},
		{35, 4},
		{123, 4},
		{124, 5},
		{1023, 5},
	}
	for _, tt := range tests {
		if got := a.BandOf(tt.bin); got != tt.band {
			t.Errorf("BandOf(%d) = %d, expected %d", tt.bin, got, tt.band)
		}
	}
}

func TestEveryBinMapsToOneBand(t *testing.T) {
	ctx := engine.NewContext(engine.Options{})
	for size := engine.MinFFTSize; size <= engine.MaxFFTSize; size *= 2 {
		limit := int(math.Log(float64(size)))
		for nb := 1; nb <= limit; nb++ {
			a, err := NewAnalyser(ctx, AnalyserOptions{FFTSize: Int(size), NumberOfBands: Int(nb)})
			if err != nil {
				t.Fatalf("fft %d bands %d: %v", size, nb, err)
			}
			if len(a.Bands()) != nb {
				t.Errorf("fft %d: expected %d bands, got %d", size, nb, len(a.Bands()))
			}
			prev := 0
			for bin := 0; bin < size/2; bin++ {
				band := a.BandOf(bin)
				if band < 0 || band >= nb {
					t.Fatalf("fft %d bands %d: bin %d maps to band %d", size, nb, bin, band)
				}
				if band < prev {
					t.Fatalf("fft %d bands %d: band index decreased at bin %d", size, nb, bin)
				}
				prev = band
			}
		}
	}
}

func TestSingleBandTakesEveryBin(t *testing.T) {
	a, fake := newTestAnalyser(t, AnalyserOptions{FFTSize: Int(32), NumberOfBands: Int(1)})
	fake.freq = make([]byte, 16)
	fake.freq[15] = 255

	a.UpdateFrequency()
	if bands := a.Bands(); len(bands) != 1 || bands[0] != 1 {
		t.Errorf("expected single band of 1, got %v", bands)
	}
}

func TestUpdateFrequency(t *testing.T) {
	a, fake := newTestAnalyser(t, AnalyserOptions{FFTSize: Int(32), NumberOfBands: Int(3)})

	// fft 32, 3 bands: intervals [1, 3]
	fake.freq = []byte{51, 102, 255, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 204}
	a.UpdateFrequency()

	freq := a.Frequency()
	if freq[0] != 0.2 || freq[2] != 1 || freq[15] != 0.8 {
		t.Errorf("unexpected normalized frequency %v", freq)
	}

	bands := a.Bands()
	expectedBands := []float64{0.2, 1, 0.8}
	for i := range expectedBands {
		if bands[i] != expectedBands[i] {
			t.Errorf("band %d: expected %v, got %v", i, expectedBands[i], bands[i])
		}
	}

	expectedAmp := float64(51+102+255+204) / 16 / 255
	if a.Amplitude() != expectedAmp {
		t.Errorf("expected amplitude %v, got %v", expectedAmp, a.Amplitude())
	}
}

func TestUpdateFrequencyIsIdempotent(t *testing.T) {
	a, fake := newTestAnalyser(t, AnalyserOptions{FFTSize: Int(32)})
	fake.freq = bytesForAmplitude(16, 0.5)

	a.UpdateFrequency()
	first := a.Snapshot()
	a.UpdateFrequency()
	second := a.Snapshot()

	if first.Amplitude != second.Amplitude || first.Signal != second.Signal {
		t.Errorf("results changed: %+v vs %+v", first, second)
	}
	for i := range first.Bands {
		if first.Bands[i] != second.Bands[i] {
			t.Errorf("band %d changed", i)
		}
	}
	for i := range first.Frequency {
		if first.Frequency[i] != second.Frequency[i] {
			t.Errorf("bin %d changed", i)
		}
	}
}

func TestSignalIsEdgeTriggered(t *testing.T) {
	a, fake := newTestAnalyser(t, AnalyserOptions{FFTSize: Int(32), Threshold: Float64(0.2)})

	var events []string
	a.OnSignal(func() { events = append(events, "on") })
	a.OffSignal(func() { events = append(events, "off") })

	var firedAfter []int
	for i, amp := range []float64{0.1, 0.3, 0.3, 0.1, 0.25} {
		before := len(events)
		fake.freq = bytesForAmplitude(16, amp)
		a.UpdateFrequency()
		if len(events) > before {
			firedAfter = append(firedAfter, i+1)
		}
	}

	expected := []string{"on", "off", "on"}
	if len(events) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, events)
	}
	for i := range expected {
		if events[i] != expected[i] {
			t.Errorf("event %d: expected %s, got %s", i, expected[i], events[i])
		}
	}
	expectedAfter := []int{2, 4, 5}
	for i := range expectedAfter {
		if firedAfter[i] != expectedAfter[i] {
			t.Errorf("firing %d: expected after sample %d, got %d", i, expectedAfter[i], firedAfter[i])
		}
	}
	if !a.Signal() {
		t.Error("expected signal to be on")
	}
}

func TestSignalAtThresholdTurnsOn(t *testing.T) {
	a, fake := newTestAnalyser(t, AnalyserOptions{FFTSize: Int(32), Threshold: Float64(0.5)})
	fake.freq = make([]byte, 16)
	for i := range fake.freq {
		fake.freq[i] = 255
	}
	mustOK(t, a.SetThreshold(1))

	fired := 0
	a.OnSignal(func() { fired++ })
	a.UpdateFrequency()

	if fired != 1 || !a.Signal() {
		t.Errorf("expected signal at amplitude equal to threshold, fired %d", fired)
	}
}

func TestRemoveSignalHandler(t *testing.T) {
	a, fake := newTestAnalyser(t, AnalyserOptions{FFTSize: Int(32), Threshold: Float64(0.2)})

	kept, removed := 0, 0
	a.OnSignal(func() { kept++ })
	remove := a.OnSignal(func() { removed++ })
	remove()

	fake.freq = bytesForAmplitude(16, 0.5)
	a.UpdateFrequency()

	if kept != 1 || removed != 0 {
		t.Errorf("expected kept=1 removed=0, got kept=%d removed=%d", kept, removed)
	}
}

func TestUpdateWaveform(t *testing.T) {
	a, fake := newTestAnalyser(t, AnalyserOptions{FFTSize: Int(32)})
	fake.wave = make([]byte, 32)
	fake.wave[0] = 0
	fake.wave[1] = 128
	fake.wave[2] = 255
	fake.wave[3] = 192
	for i := 4; i < 32; i++ {
		fake.wave[i] = 128
	}

	a.UpdateWaveform()
	wave := a.Waveform()

	expected := []float64{-1, 0, 127.0 / 128, 0.5}
	for i := range expected {
		if wave[i] != expected[i] {
			t.Errorf("sample %d: expected %v, got %v", i, expected[i], wave[i])
		}
	}
}

func TestSetFFTSizeResizes(t *testing.T) {
	a, _ := newTestAnalyser(t, AnalyserOptions{NumberOfBands: Int(7)})
	before := a.Waveform()

	if err := a.SetFFTSize(32); err != nil {
		t.Fatalf("SetFFTSize failed: %v", err)
	}
	if len(a.Waveform()) != 32 || len(a.Frequency()) != 16 {
		t.Errorf("arrays not resized: %d, %d", len(a.Waveform()), len(a.Frequency()))
	}
	// ln(32) bounds the band count at 3
	if a.NumberOfBands() != 3 || len(a.Bands()) != 3 {
		t.Errorf("expected band count lowered to 3, got %d", a.NumberOfBands())
	}
	if len(before) != 2048 {
		t.Errorf("earlier snapshot should be unaffected, got length %d", len(before))
	}
}

func TestAnalyserReadsEngineData(t *testing.T) {
	ctx := engine.NewContext(engine.Options{Channels: 1, Quantum: 128})
	a, err := NewAnalyser(ctx, AnalyserOptions{FFTSize: Int(128)})
	if err != nil {
		t.Fatalf("failed to create analyser: %v", err)
	}
	if err := a.Connect(Destination(ctx)); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	buf, _ := engine.NewBuffer(1, 256, ctx.SampleRate())
	data := make([]float32, 256)
	for i := range data {
		data[i] = 0.5
	}
	mustOK(t, buf.CopyToChannel(data, 0, 0))

	src := ctx.CreateBufferSource()
	src.SetBuffer(buf)
	mustOK(t, src.Connect(a.Input()))
	mustOK(t, src.Start(0, 0))
	ctx.Render(128)

	a.UpdateWaveform()
	for i, v := range a.Waveform() {
		if v != 0.5 {
			t.Fatalf("sample %d: expected 0.5, got %v", i, v)
		}
	}

	a.UpdateFrequency()
	if a.Amplitude() <= 0 {
		t.Error("expected non-zero amplitude for a DC signal")
	}
}
