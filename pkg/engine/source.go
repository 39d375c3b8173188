// ABOUTME: Buffer source node
// ABOUTME: Plays a Buffer once from a scheduled start frame, optionally looping
package engine

import (
	"fmt"
	"math"
)

// BufferSourceNode plays a Buffer. Start and Stop may each be called once.
type BufferSourceNode struct {
	node

	buffer     *Buffer
	loop       bool
	started    bool
	stopped    bool
	ended      bool
	startFrame int64
	stopFrame  int64
	pos        float64
	onEnded    []func()
}

func newBufferSource(c *Context) *BufferSourceNode {
	s := &BufferSourceNode{stopFrame: -1}
	s.node = newNode(c, s, 0, 1)
	return s
}

// Buffer returns the assigned buffer, or nil
func (s *BufferSourceNode) Buffer() *Buffer {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.buffer
}

// SetBuffer assigns the buffer to play
func (s *BufferSourceNode) SetBuffer(b *Buffer) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.buffer = b
}

// Loop reports whether the source wraps at the end of the buffer
func (s *BufferSourceNode) Loop() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.loop
}

// SetLoop enables or disables looping
func (s *BufferSourceNode) SetLoop(loop bool) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.loop = loop
}

// OnEnded registers fn to run once playback finishes or is stopped. If the
// source has already ended, fn runs after the next rendered quantum.
func (s *BufferSourceNode) OnEnded(fn func()) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	if s.ended {
		s.ctx.queueEnded(fn)
		return
	}
	s.onEnded = append(s.onEnded, fn)
}

// Start schedules playback at context time when, beginning offset seconds
// into the buffer. Times in the past start immediately.
func (s *BufferSourceNode) Start(when, offset float64) error {
	if when < 0 || offset < 0 || math.IsNaN(when) || math.IsNaN(offset) {
		return fmt.Errorf("%w: start(%v, %v)", ErrRange, when, offset)
	}

	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()

	if s.started {
		return fmt.Errorf("%w: source already started", ErrInvalidState)
	}
	s.started = true
	s.startFrame = max(s.ctx.toFrame(when), s.ctx.frame)

	if s.buffer != nil {
		dur := s.buffer.Duration()
		if s.loop && dur > 0 {
			offset = math.Mod(offset, dur)
		}
		offset = min(offset, dur)
		s.pos = offset * float64(s.buffer.sampleRate)
	}
	return nil
}

// Stop schedules the end of playback at context time when
func (s *BufferSourceNode) Stop(when float64) error {
	if when < 0 || math.IsNaN(when) {
		return fmt.Errorf("%w: stop(%v)", ErrRange, when)
	}

	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()

	if !s.started {
		return fmt.Errorf("%w: source not started", ErrInvalidState)
	}
	if s.stopped {
		return fmt.Errorf("%w: source already stopped", ErrInvalidState)
	}
	s.stopped = true
	s.stopFrame = max(s.ctx.toFrame(when), s.ctx.frame)
	return nil
}

// Started reports whether Start has been called
func (s *BufferSourceNode) Started() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.started
}

// Ended reports whether playback has finished
func (s *BufferSourceNode) Ended() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.ended
}

func (s *BufferSourceNode) process(in [][]float32, frame int64, out [][]float32) {
	if !s.started || s.ended {
		return
	}

	b := s.buffer
	if b != nil {
		b.mu.RLock()
		defer b.mu.RUnlock()
	}

	step := 1.0
	if b != nil {
		step = float64(b.sampleRate) / float64(s.ctx.sampleRate)
	}

	frames := len(out[0])
	for i := 0; i < frames; i++ {
		f := frame + int64(i)
		if f < s.startFrame {
			continue
		}
		if s.stopFrame >= 0 && f >= s.stopFrame {
			s.finish()
			return
		}
		if b == nil {
			continue
		}

		idx := int(s.pos)
		if idx >= b.length {
			if !s.loop || b.length == 0 {
				s.finish()
				return
			}
			s.pos = math.Mod(s.pos, float64(b.length))
			idx = int(s.pos)
		}
		for ch := range out {
			out[ch][i] = b.sample(ch, idx)
		}
		s.pos += step
	}
}

// finish marks the source ended and queues callbacks; caller holds ctx.mu
func (s *BufferSourceNode) finish() {
	s.ended = true
	for _, fn := range s.onEnded {
		s.ctx.queueEnded(fn)
	}
	s.onEnded = nil
}
