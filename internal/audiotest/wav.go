// ABOUTME: Test helpers that build encoded audio payloads
// ABOUTME: Writes 16-bit WAV files with go-audio/wav for decoder and loader tests
package audiotest

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Waveform returns the sample value in [-1, 1] for a frame and channel
type Waveform func(frame, channel int) float64

// Silence is a Waveform that is always zero
func Silence(frame, channel int) float64 { return 0 }

// Constant returns a Waveform that always produces v
func Constant(v float64) Waveform {
	return func(frame, channel int) float64 { return v }
}

// Sine returns a Waveform of the given frequency
func Sine(sampleRate int, frequency float64) Waveform {
	return func(frame, channel int) float64 {
		return math.Sin(2 * math.Pi * frequency * float64(frame) / float64(sampleRate))
	}
}

// WAV encodes frames of 16-bit PCM and returns the file bytes
func WAV(t testing.TB, sampleRate, channels, frames int, wave Waveform) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create wav fixture: %v", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, frames*channels),
		SourceBitDepth: 16,
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Data[i*channels+ch] = int(math.Round(wave(i, ch) * 32767))
		}
	}

	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write wav fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close wav encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close wav fixture: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read wav fixture: %v", err)
	}
	return data
}
