// ABOUTME: Tests for buffer sources
// ABOUTME: Tests scheduling, offsets, looping and ended notification
package engine

import (
	"errors"
	"testing"
)

func rampBuffer(t *testing.T, length, sampleRate int) *Buffer {
	t.Helper()
	b, err := NewBuffer(1, length, sampleRate)
	if err != nil {
		t.Fatalf("failed to create buffer: %v", err)
	}
	data := make([]float32, length)
	for i := range data {
		data[i] = float32(i + 1)
	}
	_ = b.CopyToChannel(data, 0, 0)
	return b
}

func TestSourcePlaysToEnd(t *testing.T) {
	ctx := NewContext(Options{Channels: 2, Quantum: 256})
	src := ctx.CreateBufferSource()
	src.SetBuffer(rampBuffer(t, 1000, ctx.SampleRate()))
	_ = src.Connect(ctx.Destination())

	endedCalls := 0
	src.OnEnded(func() { endedCalls++ })

	if err := src.Start(0, 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	out := ctx.Render(1280)

	// Mono buffers are duplicated to every output channel
	for ch := 0; ch < 2; ch++ {
		if out[ch][0] != 1 || out[ch][999] != 1000 {
			t.Errorf("channel %d: unexpected samples %v, %v", ch, out[ch][0], out[ch][999])
		}
		if out[ch][1000] != 0 {
			t.Errorf("channel %d: expected silence after end, got %v", ch, out[ch][1000])
		}
	}
	if !src.Ended() {
		t.Error("expected source to have ended")
	}
	if endedCalls != 1 {
		t.Errorf("expected ended callback once, got %d", endedCalls)
	}
}

func TestSourceScheduledStart(t *testing.T) {
	ctx := NewContext(Options{Channels: 1, Quantum: 128})
	src := ctx.CreateBufferSource()
	src.SetBuffer(rampBuffer(t, 1000, ctx.SampleRate()))
	_ = src.Connect(ctx.Destination())

	when := 300.0 / float64(ctx.SampleRate())
	if err := src.Start(when, 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	out := ctx.Render(512)
	if out[0][299] != 0 {
		t.Errorf("expected silence before start, got %v", out[0][299])
	}
	if out[0][300] != 1 {
		t.Errorf("expected first sample at frame 300, got %v", out[0][300])
	}
}

func TestSourceOffset(t *testing.T) {
	ctx := NewContext(Options{Channels: 1, Quantum: 128})
	src := ctx.CreateBufferSource()
	src.SetBuffer(rampBuffer(t, ctx.SampleRate(), ctx.SampleRate()))
	_ = src.Connect(ctx.Destination())

	if err := src.Start(0, 0.5); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	out := ctx.Render(128)
	if out[0][0] != float32(ctx.SampleRate()/2+1) {
		t.Errorf("expected sample %d, got %v", ctx.SampleRate()/2+1, out[0][0])
	}
}

func TestSourceLoop(t *testing.T) {
	ctx := NewContext(Options{Channels: 1, Quantum: 64})
	src := ctx.CreateBufferSource()
	src.SetBuffer(rampBuffer(t, 100, ctx.SampleRate()))
	src.SetLoop(true)
	_ = src.Connect(ctx.Destination())
	_ = src.Start(0, 0)

	out := ctx.Render(256)
	if out[0][100] != 1 || out[0][250] != 51 {
		t.Errorf("expected looped samples 1 and 51, got %v and %v", out[0][100], out[0][250])
	}
	if src.Ended() {
		t.Error("looping source should not end")
	}
}

func TestSourceStop(t *testing.T) {
	ctx := NewContext(Options{Channels: 1, Quantum: 64})
	src := ctx.CreateBufferSource()
	src.SetBuffer(rampBuffer(t, 1000, ctx.SampleRate()))
	src.SetLoop(true)
	_ = src.Connect(ctx.Destination())

	ended := false
	src.OnEnded(func() { ended = true })

	_ = src.Start(0, 0)
	if err := src.Stop(100.0 / float64(ctx.SampleRate())); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	out := ctx.Render(192)
	if out[0][99] != 100 || out[0][100] != 0 {
		t.Errorf("expected cut at frame 100, got %v then %v", out[0][99], out[0][100])
	}
	if !ended {
		t.Error("expected ended callback after stop")
	}
}

func TestSourceStateErrors(t *testing.T) {
	ctx := NewContext(Options{})
	src := ctx.CreateBufferSource()

	if err := src.Stop(0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("stop before start: expected ErrInvalidState, got %v", err)
	}
	if err := src.Start(-1, 0); !errors.Is(err, ErrRange) {
		t.Errorf("negative when: expected ErrRange, got %v", err)
	}
	if err := src.Start(0, -1); !errors.Is(err, ErrRange) {
		t.Errorf("negative offset: expected ErrRange, got %v", err)
	}
	if err := src.Start(0, 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := src.Start(0, 0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second start: expected ErrInvalidState, got %v", err)
	}
	if err := src.Stop(-1); !errors.Is(err, ErrRange) {
		t.Errorf("negative stop: expected ErrRange, got %v", err)
	}
	if err := src.Stop(0); err != nil {
		t.Errorf("stop failed: %v", err)
	}
	if err := src.Stop(0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second stop: expected ErrInvalidState, got %v", err)
	}
}

func TestSourceWithoutBufferIsSilent(t *testing.T) {
	ctx := NewContext(Options{Channels: 1, Quantum: 64})
	src := ctx.CreateBufferSource()
	_ = src.Connect(ctx.Destination())
	_ = src.Start(0, 0)

	out := ctx.Render(64)
	for i, v := range out[0] {
		if v != 0 {
			t.Fatalf("frame %d: expected silence, got %v", i, v)
		}
	}
	if src.Ended() {
		t.Error("source without buffer ends only when stopped")
	}
}
