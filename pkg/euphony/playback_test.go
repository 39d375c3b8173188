// ABOUTME: Tests for playback
// ABOUTME: Tests the transport state machine, offsets, buffer resizing and loading
package euphony

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harperreed/euphony-go/internal/audiotest"
	"github.com/harperreed/euphony-go/pkg/engine"
)

const testRate = 8000

func newTestContext() *engine.Context {
	return engine.NewContext(engine.Options{SampleRate: testRate, Channels: 1, Quantum: 80})
}

func newTestPlayback(t *testing.T, ctx *engine.Context) *Playback {
	t.Helper()
	p, err := NewPlayback(PlaybackOptions{
		ControllerOptions: ControllerOptions{
			Context:  ctx,
			Analyser: AnalyserOptions{FFTSize: Int(32)},
		},
	})
	if err != nil {
		t.Fatalf("failed to create playback: %v", err)
	}
	if err := p.Connect(Destination(ctx)); err != nil {
		t.Fatalf("failed to connect playback: %v", err)
	}
	return p
}

// rampBuffer holds frame/sampleRate on every channel so a sample reveals its position
func rampBuffer(t *testing.T, channels, length int) *engine.Buffer {
	t.Helper()
	b, err := engine.NewBuffer(channels, length, testRate)
	if err != nil {
		t.Fatalf("failed to create buffer: %v", err)
	}
	data := make([]float32, length)
	for i := range data {
		data[i] = float32(i) / testRate
	}
	for ch := 0; ch < channels; ch++ {
		mustOK(t, b.CopyToChannel(data, ch, 0))
	}
	return b
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func renderSeconds(ctx *engine.Context, seconds float64) [][]float32 {
	return ctx.Render(int(math.Round(seconds * float64(ctx.SampleRate()))))
}

func TestPlaybackStateMachine(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)
	if err := p.SetBuffer(rampBuffer(t, 1, testRate)); err != nil {
		t.Fatalf("SetBuffer failed: %v", err)
	}

	if p.State() != Stopped {
		t.Fatalf("expected stopped, got %s", p.State())
	}

	if err := p.Play(); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if p.State() != Playing {
		t.Fatalf("expected playing, got %s", p.State())
	}

	renderSeconds(ctx, 0.5)
	if got := p.PlaybackTime(); !approxEqual(got, 0.4) {
		t.Errorf("expected playback time 0.4, got %v", got)
	}

	if err := p.PauseIn(0); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if p.State() != Paused {
		t.Fatalf("expected paused, got %s", p.State())
	}
	renderSeconds(ctx, 0.3)
	if got := p.PlaybackTime(); !approxEqual(got, 0.4) {
		t.Errorf("expected paused playback time 0.4, got %v", got)
	}

	if err := p.PlayIn(0); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	renderSeconds(ctx, 0.2)
	if got := p.PlaybackTime(); !approxEqual(got, 0.6) {
		t.Errorf("expected playback time 0.6 after resume, got %v", got)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if p.State() != Stopped || p.PlaybackTime() != 0 {
		t.Errorf("expected stopped at 0, got %s at %v", p.State(), p.PlaybackTime())
	}
}

func TestPlayTwiceIsNoop(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)
	mustOK(t, p.SetBuffer(rampBuffer(t, 1, testRate)))

	if err := p.Play(); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	source, start := p.source, p.startTime

	renderSeconds(ctx, 0.05)
	if err := p.Play(); err != nil {
		t.Fatalf("second play failed: %v", err)
	}
	if p.source != source || p.startTime != start || p.State() != Playing {
		t.Error("second play changed playback state")
	}
}

func TestPauseAndStopWhenNotPlayingAreNoops(t *testing.T) {
	p := newTestPlayback(t, newTestContext())
	source := p.source

	if err := p.Pause(); err != nil {
		t.Errorf("pause failed: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
	if p.source != source || p.State() != Stopped {
		t.Error("expected no source replacement while stopped")
	}
}

func TestResumeContinuesFromOffset(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)
	mustOK(t, p.SetBuffer(rampBuffer(t, 1, testRate)))

	mustOK(t, p.PlayIn(0))
	renderSeconds(ctx, 0.1)
	mustOK(t, p.PauseIn(0))

	out := renderSeconds(ctx, 0.1)
	if out[0][0] != 0 {
		t.Errorf("expected silence while paused, got %v", out[0][0])
	}

	mustOK(t, p.PlayIn(0))
	out = renderSeconds(ctx, 0.01)
	if !approxEqual(float64(out[0][0]), 0.1) {
		t.Errorf("expected resume at position 0.1, got %v", out[0][0])
	}
}

func TestPauseBeforeScheduledStartResumesFromZero(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)
	mustOK(t, p.SetBuffer(rampBuffer(t, 1, testRate)))

	mustOK(t, p.Play())
	mustOK(t, p.PauseIn(0))
	if p.State() != Paused {
		t.Fatalf("expected paused, got %s", p.State())
	}
	if got := p.PlaybackTime(); got != 0 {
		t.Errorf("expected paused playback time 0, got %v", got)
	}

	mustOK(t, p.PlayIn(0))
	out := renderSeconds(ctx, 0.01)
	if out[0][0] != 0 || !approxEqual(float64(out[0][1]), 1.0/testRate) {
		t.Errorf("expected playback from the start, got %v, %v", out[0][0], out[0][1])
	}
}

func TestStopThenPlayStartsFromZero(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)
	mustOK(t, p.SetBuffer(rampBuffer(t, 1, testRate)))

	mustOK(t, p.PlayIn(0))
	renderSeconds(ctx, 0.2)
	mustOK(t, p.StopIn(0))
	mustOK(t, p.Play())

	if got := p.PlaybackTime(); got != 0 {
		t.Errorf("expected playback time 0 at the new start, got %v", got)
	}
	if p.startTime != ctx.CurrentTime()+DefaultDelay {
		t.Errorf("expected start time %v, got %v", ctx.CurrentTime()+DefaultDelay, p.startTime)
	}
}

func TestStopWhilePausedForgetsOffset(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)
	mustOK(t, p.SetBuffer(rampBuffer(t, 1, testRate)))

	mustOK(t, p.PlayIn(0))
	renderSeconds(ctx, 0.2)
	mustOK(t, p.PauseIn(0))
	mustOK(t, p.StopIn(0))
	if p.State() != Stopped {
		t.Fatalf("expected stopped, got %s", p.State())
	}

	mustOK(t, p.PlayIn(0))
	out := renderSeconds(ctx, 0.01)
	if out[0][0] != 0 || !approxEqual(float64(out[0][1]), 1.0/testRate) {
		t.Errorf("expected playback from the start, got %v, %v", out[0][0], out[0][1])
	}
}

func TestPlaybackVolume(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)

	buf, _ := engine.NewBuffer(1, 80, testRate)
	mustOK(t, buf.CopyToChannel([]float32{0.5, 0.5}, 0, 0))
	mustOK(t, p.SetBuffer(buf))
	p.SetVolume(0.5)

	mustOK(t, p.PlayIn(0))
	out := ctx.Render(80)
	if out[0][0] != 0.25 {
		t.Errorf("expected 0.25, got %v", out[0][0])
	}
}

func TestNaturalEndStops(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)
	mustOK(t, p.SetBuffer(rampBuffer(t, 1, 160)))

	mustOK(t, p.PlayIn(0))
	ctx.Render(400)

	if p.State() != Stopped {
		t.Errorf("expected stopped after the buffer played out, got %s", p.State())
	}
	if err := p.PlayIn(0); err != nil {
		t.Errorf("replay failed: %v", err)
	}
}

func TestLoopKeepsPlaying(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)
	mustOK(t, p.SetBuffer(rampBuffer(t, 1, 160)))
	p.SetLoop(true)

	mustOK(t, p.PlayIn(0))
	ctx.Render(400)

	if p.State() != Playing {
		t.Errorf("expected looping playback to keep playing, got %s", p.State())
	}
	if got := p.PlaybackTime(); !approxEqual(got, 80.0/testRate) {
		t.Errorf("expected wrapped playback time %v, got %v", 80.0/testRate, got)
	}
}

func TestNegativeDelayFails(t *testing.T) {
	p := newTestPlayback(t, newTestContext())
	if err := p.PlayIn(-1); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestAdjustBuffer(t *testing.T) {
	tests := []struct {
		name   string
		length int
	}{
		{"truncate", 50},
		{"same", 100},
		{"pad", 200},
		{"empty", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlayback(t, newTestContext())
			original := rampBuffer(t, 2, 100)
			mustOK(t, p.SetBuffer(original))

			if err := p.AdjustBuffer(tt.length); err != nil {
				t.Fatalf("AdjustBuffer failed: %v", err)
			}

			buf := p.Buffer()
			if buf.Length() != tt.length {
				t.Fatalf("expected length %d, got %d", tt.length, buf.Length())
			}
			if buf.NumberOfChannels() != 2 || buf.SampleRate() != testRate {
				t.Errorf("shape changed: %d channels at %dHz", buf.NumberOfChannels(), buf.SampleRate())
			}
			if p.BufferLength() != tt.length {
				t.Errorf("expected BufferLength %d, got %d", tt.length, p.BufferLength())
			}

			for ch := 0; ch < 2; ch++ {
				want, _ := original.ChannelData(ch)
				got, _ := buf.ChannelData(ch)
				for i, v := range got {
					expected := float32(0)
					if i < len(want) {
						expected = want[i]
					}
					if v != expected {
						t.Fatalf("channel %d frame %d: expected %v, got %v", ch, i, expected, v)
					}
				}
			}
		})
	}
}

func TestAdjustBufferWithoutBuffer(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)

	if err := p.AdjustBuffer(300); err != nil {
		t.Fatalf("AdjustBuffer failed: %v", err)
	}
	buf := p.Buffer()
	if buf.Length() != 300 || buf.NumberOfChannels() != ctx.Channels() {
		t.Errorf("unexpected silent buffer: %d frames, %d channels", buf.Length(), buf.NumberOfChannels())
	}
}

func TestAdjustBufferRejectsNegative(t *testing.T) {
	p := newTestPlayback(t, newTestContext())
	if err := p.AdjustBuffer(-1); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestAdjustBufferWhilePlaying(t *testing.T) {
	ctx := newTestContext()
	p := newTestPlayback(t, ctx)
	mustOK(t, p.SetBuffer(rampBuffer(t, 1, testRate)))

	mustOK(t, p.PlayIn(0))
	renderSeconds(ctx, 0.1)

	if err := p.AdjustBuffer(2 * testRate); err != nil {
		t.Fatalf("AdjustBuffer failed: %v", err)
	}
	if p.State() != Playing {
		t.Fatalf("expected to keep playing, got %s", p.State())
	}

	out := renderSeconds(ctx, 0.01)
	if !approxEqual(float64(out[0][0]), 0.1) {
		t.Errorf("expected playback to continue at 0.1, got %v", out[0][0])
	}
}

func TestPlaybackHasNoInput(t *testing.T) {
	ctx := newTestContext()
	a := newTestPlayback(t, ctx)
	b := newTestPlayback(t, ctx)

	if err := a.Connect(b); !errors.Is(err, ErrTopology) {
		t.Errorf("expected ErrTopology, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	wav := audiotest.WAV(t, testRate, 1, 400, audiotest.Constant(0.5))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/track.wav":
			w.Write(wav)
		case "/garbage":
			w.Write([]byte("this is not audio"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"success", "/track.wav", nil},
		{"not found", "/missing.wav", ErrConnection},
		{"malformed", "/garbage", ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlayback(t, newTestContext())

			loaded := 0
			var callbackErr error
			err := p.Load(context.Background(), server.URL+tt.path, LoadCallbacks{
				OnLoad:  func() { loaded++ },
				OnError: func(err error) { callbackErr = err },
			})

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("load failed: %v", err)
				}
				if loaded != 1 {
					t.Errorf("expected OnLoad once, got %d", loaded)
				}
				if p.BufferLength() != 400 {
					t.Errorf("expected 400 frames, got %d", p.BufferLength())
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if callbackErr != err {
				t.Errorf("expected OnError to receive the returned error, got %v", callbackErr)
			}
			if loaded != 0 {
				t.Error("OnLoad should not run on failure")
			}
			var lerr *LoadError
			if !errors.As(err, &lerr) || lerr.URL != server.URL+tt.path {
				t.Errorf("expected LoadError for the URL, got %#v", err)
			}
		})
	}
}

func TestLoadAsync(t *testing.T) {
	wav := audiotest.WAV(t, testRate, 1, 200, audiotest.Silence)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(wav)
	}))
	defer server.Close()

	p := newTestPlayback(t, newTestContext())
	if err := <-p.LoadAsync(context.Background(), server.URL, LoadCallbacks{}); err != nil {
		t.Fatalf("async load failed: %v", err)
	}
	if p.BufferLength() != 200 {
		t.Errorf("expected 200 frames, got %d", p.BufferLength())
	}
}

func TestSetBufferRejectsNil(t *testing.T) {
	p := newTestPlayback(t, newTestContext())
	if err := p.SetBuffer(nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{Stopped, "stopped"},
		{Playing, "playing"},
		{Paused, "paused"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, expected %q", tt.state, got, tt.expected)
		}
	}
}
