// ABOUTME: Audio graph node plumbing
// ABOUTME: Connection bookkeeping, input mixing and per-quantum output caching
package engine

import "fmt"

// Node is a vertex in a context's audio graph. Only engine types implement it.
type Node interface {
	Context() *Context
	Connect(dst Node) error
	Disconnect()
	DisconnectFrom(dst Node) error
	NumberOfInputs() int
	NumberOfOutputs() int
	base() *node
}

// processor renders one quantum from mixed input into out
type processor interface {
	process(in [][]float32, frame int64, out [][]float32)
}

type node struct {
	ctx     *Context
	proc    processor
	numIn   int
	numOut  int
	inputs  []*node
	outputs []*node

	renderedAt int64
	mix        [][]float32
	out        [][]float32
}

func newNode(ctx *Context, proc processor, numIn, numOut int) node {
	return node{
		ctx:        ctx,
		proc:       proc,
		numIn:      numIn,
		numOut:     numOut,
		renderedAt: -1,
	}
}

func (n *node) base() *node { return n }

// Context returns the owning context
func (n *node) Context() *Context { return n.ctx }

// NumberOfInputs returns 0 for sources and 1 otherwise
func (n *node) NumberOfInputs() int { return n.numIn }

// NumberOfOutputs returns 0 for the destination and 1 otherwise
func (n *node) NumberOfOutputs() int { return n.numOut }

// Connect routes this node's output into dst
func (n *node) Connect(dst Node) error {
	if dst == nil {
		return fmt.Errorf("%w: nil destination", ErrNoInput)
	}
	d := dst.base()
	if d.ctx != n.ctx {
		return ErrContextMismatch
	}
	if n.numOut == 0 {
		return ErrNoOutput
	}
	if d.numIn == 0 {
		return ErrNoInput
	}

	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	if d == n || d.reaches(n) {
		return ErrCycle
	}
	for _, o := range n.outputs {
		if o == d {
			return nil
		}
	}
	n.outputs = append(n.outputs, d)
	d.inputs = append(d.inputs, n)
	return nil
}

// Disconnect removes every outgoing connection
func (n *node) Disconnect() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	for _, o := range n.outputs {
		o.inputs = removeNode(o.inputs, n)
	}
	n.outputs = nil
}

// DisconnectFrom removes the connection to dst
func (n *node) DisconnectFrom(dst Node) error {
	if dst == nil {
		return ErrNotConnected
	}
	d := dst.base()

	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	for _, o := range n.outputs {
		if o == d {
			n.outputs = removeNode(n.outputs, d)
			d.inputs = removeNode(d.inputs, n)
			return nil
		}
	}
	return ErrNotConnected
}

// reaches reports whether target is downstream of n; caller holds ctx.mu
func (n *node) reaches(target *node) bool {
	for _, o := range n.outputs {
		if o == target || o.reaches(target) {
			return true
		}
	}
	return false
}

// pull renders this node for the quantum starting at frame; caller holds ctx.mu
func (n *node) pull(frame int64, frames int) [][]float32 {
	if n.renderedAt == frame && len(n.out) > 0 && len(n.out[0]) == frames {
		return n.out
	}

	channels := n.ctx.channels
	n.mix = sizeBlock(n.mix, channels, frames)
	for _, in := range n.inputs {
		block := in.pull(frame, frames)
		for ch := range n.mix {
			dst := n.mix[ch]
			for i, v := range block[ch] {
				dst[i] += v
			}
		}
	}

	n.out = sizeBlock(n.out, channels, frames)
	n.proc.process(n.mix, frame, n.out)
	n.renderedAt = frame
	return n.out
}

// sizeBlock returns a zeroed channels x frames block, reusing b when possible
func sizeBlock(b [][]float32, channels, frames int) [][]float32 {
	if len(b) != channels {
		b = make([][]float32, channels)
	}
	for ch := range b {
		if cap(b[ch]) < frames {
			b[ch] = make([]float32, frames)
			continue
		}
		b[ch] = b[ch][:frames]
		clear(b[ch])
	}
	return b
}

func removeNode(list []*node, target *node) []*node {
	out := list[:0]
	for _, n := range list {
		if n != target {
			out = append(out, n)
		}
	}
	// Drop the stale tail reference
	for i := len(out); i < len(list); i++ {
		list[i] = nil
	}
	return out
}
