// ABOUTME: Null audio output
// ABOUTME: Discards rendered audio while pacing writes to wall-clock time
package output

import (
	"errors"
	"time"
)

// Null discards audio. When paced, Write sleeps for the block duration so the
// engine clock tracks real time without a device.
type Null struct {
	sampleRate int
	channels   int
	paced      bool
	next       time.Time
	written    int64
	ready      bool
}

// NewNull creates a null output; paced controls real-time sleeping
func NewNull(paced bool) *Null {
	return &Null{paced: paced}
}

// Open records the format
func (n *Null) Open(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return errors.New("invalid output format")
	}
	n.sampleRate = sampleRate
	n.channels = channels
	n.next = time.Now()
	n.ready = true
	return nil
}

// Write discards the block
func (n *Null) Write(block [][]float32) error {
	if !n.ready {
		return errors.New("output not initialized")
	}
	if len(block) == 0 {
		return nil
	}

	frames := len(block[0])
	n.written += int64(frames)

	if n.paced {
		n.next = n.next.Add(time.Duration(frames) * time.Second / time.Duration(n.sampleRate))
		if d := time.Until(n.next); d > 0 {
			time.Sleep(d)
		}
	}
	return nil
}

// Frames returns the number of frames written so far
func (n *Null) Frames() int64 {
	return n.written
}

// Close marks the output closed
func (n *Null) Close() error {
	n.ready = false
	return nil
}
