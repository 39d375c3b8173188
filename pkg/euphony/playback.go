// ABOUTME: Single-buffer producer with pause/resume offset tracking
// ABOUTME: Loads audio from a URL, schedules its source and resizes its buffer for sync
package euphony

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/harperreed/euphony-go/internal/fetch"
	"github.com/harperreed/euphony-go/pkg/engine"
)

// State is the transport state of a Playback
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Fetcher returns the encoded bytes at url
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// LoadCallbacks are invoked by Load. Either may be nil.
type LoadCallbacks struct {
	OnLoad  func()
	OnError func(err error)
}

// Playback plays one decoded buffer. It always holds a source that is ready
// to start; pausing or stopping retires the current source and wires a fresh
// one in its place.
type Playback struct {
	*Controller

	mu        sync.Mutex
	fetcher   Fetcher
	buffer    *engine.Buffer
	source    *engine.BufferSourceNode
	playing   bool
	paused    bool
	startTime float64
	pauseTime float64
	loop      bool
}

// NewPlayback creates a stopped playback with no buffer
func NewPlayback(opts PlaybackOptions) (*Playback, error) {
	c, err := newController(opts.ControllerOptions)
	if err != nil {
		return nil, err
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		f, err := fetch.New(fetch.Options{})
		if err != nil {
			return nil, err
		}
		fetcher = f
	}

	p := &Playback{Controller: c, fetcher: fetcher, loop: opts.Loop}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.replaceSource(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Playback) producer() {}

// Kind returns KindPlayback
func (p *Playback) Kind() Kind { return KindPlayback }

// Input is nil: nothing can be connected into a Playback
func (p *Playback) Input() engine.Node { return nil }

// State returns the transport state
func (p *Playback) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state()
}

func (p *Playback) state() State {
	switch {
	case p.playing:
		return Playing
	case p.paused:
		return Paused
	default:
		return Stopped
	}
}

// Buffer returns the current buffer, or nil before a load
func (p *Playback) Buffer() *engine.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer
}

// BufferLength returns the buffer length in frames
func (p *Playback) BufferLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buffer == nil {
		return 0
	}
	return p.buffer.Length()
}

// BufferDuration returns the buffer length in seconds
func (p *Playback) BufferDuration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration()
}

func (p *Playback) duration() float64 {
	if p.buffer == nil {
		return 0
	}
	return p.buffer.Duration()
}

// Loop reports whether the source wraps at the end of the buffer
func (p *Playback) Loop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loop
}

// SetLoop updates the flag on the live source too
func (p *Playback) SetLoop(loop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = loop
	p.source.SetLoop(loop)
}

// Play starts after DefaultDelay
func (p *Playback) Play() error { return p.PlayIn(DefaultDelay) }

// Pause pauses after DefaultDelay
func (p *Playback) Pause() error { return p.PauseIn(DefaultDelay) }

// Stop stops after DefaultDelay
func (p *Playback) Stop() error { return p.StopIn(DefaultDelay) }

// PlayIn starts playback delay seconds from now, resuming from the paused
// position if there is one. It is a no-op while playing.
func (p *Playback) PlayIn(delay float64) error {
	when, err := p.at(delay)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return nil
	}

	offset := 0.0
	if p.paused {
		offset = p.pausedOffset()
		p.paused = false
	}

	if err := p.source.Start(when, offset); err != nil {
		return fmt.Errorf("failed to start source: %w", err)
	}
	p.startTime = when - offset
	p.playing = true
	return nil
}

// PauseIn pauses delay seconds from now and remembers the position. It is a
// no-op unless playing.
func (p *Playback) PauseIn(delay float64) error {
	when, err := p.at(delay)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return nil
	}
	if err := p.source.Stop(when); err != nil {
		return fmt.Errorf("failed to stop source: %w", err)
	}
	p.pauseTime = when
	p.paused = true
	p.playing = false
	return p.replaceSource()
}

// StopIn stops delay seconds from now and forgets the position. While paused
// it only clears the remembered position; otherwise it is a no-op unless playing.
func (p *Playback) StopIn(delay float64) error {
	when, err := p.at(delay)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused = false
	if !p.playing {
		return nil
	}
	if err := p.source.Stop(when); err != nil {
		return fmt.Errorf("failed to stop source: %w", err)
	}
	p.playing = false
	return p.replaceSource()
}

// PlaybackTime returns the position in seconds within the buffer
func (p *Playback) PlaybackTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.playing:
		elapsed := p.ctx.CurrentTime() - p.startTime
		if elapsed < 0 {
			return 0
		}
		return mod(elapsed, p.duration())
	case p.paused:
		return p.pausedOffset()
	default:
		return 0
	}
}

// pausedOffset is the buffer position held while paused. A pause that took
// effect before the scheduled start holds position 0.
func (p *Playback) pausedOffset() float64 {
	return mod(max(p.pauseTime-p.startTime, 0), p.duration())
}

// Load fetches and decodes url, then swaps the result in. On failure OnError
// runs and the same error is returned. Concurrent loads race; the last to
// finish wins.
func (p *Playback) Load(ctx context.Context, url string, cb LoadCallbacks) error {
	buf, err := p.fetchAndDecode(ctx, url)
	if err != nil {
		log.Printf("Playback %s load failed: %v", p.id, err)
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}

	if err := p.SetBuffer(buf); err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}

	log.Printf("Playback %s loaded %s: %d frames, %.2fs", p.id, url, buf.Length(), buf.Duration())
	if cb.OnLoad != nil {
		cb.OnLoad()
	}
	return nil
}

// LoadAsync runs Load on its own goroutine and delivers the result
func (p *Playback) LoadAsync(ctx context.Context, url string, cb LoadCallbacks) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- p.Load(ctx, url, cb)
	}()
	return done
}

func (p *Playback) fetchAndDecode(ctx context.Context, url string) (*engine.Buffer, error) {
	data, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &LoadError{Kind: ErrConnection, URL: url, Err: err}
	}

	buf, err := p.ctx.DecodeAudioData(data)
	if err != nil {
		return nil, &LoadError{Kind: ErrDecode, URL: url, Err: err}
	}
	return buf, nil
}

// SetBuffer replaces the buffer and rebuilds the source around it. A playing
// source continues from the same position in the new buffer.
func (p *Playback) SetBuffer(buf *engine.Buffer) error {
	if buf == nil {
		return &ConfigurationError{Field: "buffer", Value: nil, Message: "is required"}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.swapBuffer(buf)
}

// AdjustBuffer resizes the buffer to length frames, truncating or padding
// with silence. Channel count and sample rate are kept; nothing is resampled.
func (p *Playback) AdjustBuffer(length int) error {
	if err := validateVar("length", length, "gte=0"); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	channels, rate := p.ctx.Channels(), p.ctx.SampleRate()
	if p.buffer != nil {
		channels, rate = p.buffer.NumberOfChannels(), p.buffer.SampleRate()
	}

	next, err := engine.NewBuffer(channels, length, rate)
	if err != nil {
		return fmt.Errorf("failed to allocate buffer: %w", err)
	}

	if p.buffer != nil {
		transfer := make([]float32, length)
		for ch := 0; ch < channels; ch++ {
			if err := p.buffer.CopyFromChannel(transfer, ch, 0); err != nil {
				return err
			}
			if err := next.CopyToChannel(transfer, ch, 0); err != nil {
				return err
			}
		}
	}

	return p.swapBuffer(next)
}

// swapBuffer installs buf and a fresh source; caller holds mu
func (p *Playback) swapBuffer(buf *engine.Buffer) error {
	p.buffer = buf

	if !p.playing {
		return p.replaceSource()
	}

	now := p.ctx.CurrentTime()
	if err := p.source.Stop(now); err != nil {
		return fmt.Errorf("failed to stop source: %w", err)
	}
	if err := p.replaceSource(); err != nil {
		return err
	}

	offset := mod(max(now-p.startTime, 0), buf.Duration())
	if err := p.source.Start(now, offset); err != nil {
		return fmt.Errorf("failed to restart source: %w", err)
	}
	p.startTime = now - offset
	return nil
}

// replaceSource retires the current source and wires a fresh one bound to
// the current buffer; caller holds mu
func (p *Playback) replaceSource() error {
	if old := p.source; old != nil {
		retire(old)
	}

	src := p.ctx.CreateBufferSource()
	if p.buffer != nil {
		src.SetBuffer(p.buffer)
	}
	src.SetLoop(p.loop)
	if err := src.Connect(p.gain); err != nil {
		return fmt.Errorf("failed to connect source: %w", err)
	}
	src.OnEnded(func() { p.sourceEnded(src) })
	p.source = src
	return nil
}

// sourceEnded moves a naturally finished source to Stopped
func (p *Playback) sourceEnded(src *engine.BufferSourceNode) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source != src || !p.playing {
		return
	}
	p.playing = false
	if err := p.replaceSource(); err != nil {
		log.Printf("Playback %s failed to replace ended source: %v", p.id, err)
	}
}

// retire disconnects src once it has played out. A source that never
// started is disconnected immediately.
func retire(src *engine.BufferSourceNode) {
	if !src.Started() {
		src.Disconnect()
		return
	}
	src.OnEnded(src.Disconnect)
}

// mod is a floored modulo returning 0 for an empty period
func mod(x, period float64) float64 {
	if period <= 0 {
		return 0
	}
	r := math.Mod(x, period)
	if r < 0 {
		r += period
	}
	return r
}
