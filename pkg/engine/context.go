// ABOUTME: Audio context: clock, destination and node factories
// ABOUTME: Renders the graph offline or streams it to an output device
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/harperreed/euphony-go/pkg/audio/decode"
	"github.com/harperreed/euphony-go/pkg/audio/output"
	"github.com/harperreed/euphony-go/pkg/audio/resample"
)

const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
	DefaultQuantum    = 512
)

// Options configures a Context
type Options struct {
	// SampleRate of the graph in Hz (default: 48000)
	SampleRate int

	// Channels rendered by every node (default: 2)
	Channels int

	// Quantum is the render block size in frames (default: 512)
	Quantum int

	// Decoders used by DecodeAudioData (default: decode.Default())
	Decoders *decode.Registry
}

// Context owns an audio graph and its clock
type Context struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	quantum    int
	frame      int64
	decoders   *decode.Registry

	destination *DestinationNode

	// ended callbacks run after mu is released
	ended []func()
}

// NewContext creates a context with the given options
func NewContext(opts Options) *Context {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = DefaultChannels
	}
	if opts.Quantum <= 0 {
		opts.Quantum = DefaultQuantum
	}
	if opts.Decoders == nil {
		opts.Decoders = decode.Default()
	}

	c := &Context{
		sampleRate: opts.SampleRate,
		channels:   opts.Channels,
		quantum:    opts.Quantum,
		decoders:   opts.Decoders,
	}
	c.destination = newDestination(c)
	return c
}

// SampleRate returns the graph sample rate
func (c *Context) SampleRate() int { return c.sampleRate }

// Channels returns the graph channel count
func (c *Context) Channels() int { return c.channels }

// CurrentTime returns seconds rendered so far
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.frame) / float64(c.sampleRate)
}

// CurrentFrame returns frames rendered so far
func (c *Context) CurrentFrame() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Destination returns the final node of the graph
func (c *Context) Destination() *DestinationNode { return c.destination }

// CreateGain creates a gain node with unity gain
func (c *Context) CreateGain() *GainNode { return newGain(c) }

// CreateAnalyser creates an analyser node with default settings
func (c *Context) CreateAnalyser() *AnalyserNode { return newAnalyser(c) }

// CreateBufferSource creates an unstarted buffer source
func (c *Context) CreateBufferSource() *BufferSourceNode { return newBufferSource(c) }

// CreateBuffer allocates a silent buffer
func (c *Context) CreateBuffer(channels, length, sampleRate int) (*Buffer, error) {
	return NewBuffer(channels, length, sampleRate)
}

// DecodeAudioData decodes a complete payload into a buffer at the context rate
func (c *Context) DecodeAudioData(data []byte) (*Buffer, error) {
	pcm, err := c.decoders.Decode(data)
	if err != nil {
		return nil, err
	}

	pcm = resample.ToRate(pcm, c.sampleRate)
	return BufferFromPCM(pcm)
}

// Render renders frames offline, advancing the clock, and returns the
// destination output
func (c *Context) Render(frames int) [][]float32 {
	out := make([][]float32, c.channels)
	for ch := range out {
		out[ch] = make([]float32, 0, frames)
	}

	for remaining := frames; remaining > 0; {
		n := min(remaining, c.quantum)
		block := c.renderQuantum(n)
		for ch := range out {
			out[ch] = append(out[ch], block[ch]...)
		}
		remaining -= n
	}
	return out
}

// renderQuantum renders one block and returns a copy owned by the caller
func (c *Context) renderQuantum(frames int) [][]float32 {
	c.mu.Lock()
	rendered := c.destination.pull(c.frame, frames)
	block := make([][]float32, len(rendered))
	for ch := range rendered {
		block[ch] = append([]float32(nil), rendered[ch]...)
	}
	c.frame += int64(frames)
	ended := c.ended
	c.ended = nil
	c.mu.Unlock()

	for _, fn := range ended {
		fn()
	}
	return block
}

// queueEnded schedules fn to run once the current quantum completes; caller holds mu
func (c *Context) queueEnded(fn func()) {
	c.ended = append(c.ended, fn)
}

// Run streams the graph to out until ctx is cancelled or a write fails
func (c *Context) Run(ctx context.Context, out output.Output) error {
	if err := out.Open(c.sampleRate, c.channels); err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Printf("Error closing output: %v", err)
		}
	}()

	log.Printf("Audio context running: %dHz, %d channels, quantum %d", c.sampleRate, c.channels, c.quantum)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := out.Write(c.renderQuantum(c.quantum)); err != nil {
			return fmt.Errorf("output write failed: %w", err)
		}
	}
}

// toFrame converts a context time to the first frame at or after it
func (c *Context) toFrame(when float64) int64 {
	return int64(math.Ceil(when*float64(c.sampleRate) - 1e-9))
}
