// ABOUTME: Gain and destination nodes
// ABOUTME: Gain scales its mixed input; the destination is the graph sink
package engine

// GainNode multiplies its input by a gain value
type GainNode struct {
	node
	gain float64
}

func newGain(c *Context) *GainNode {
	g := &GainNode{gain: 1}
	g.node = newNode(c, g, 1, 1)
	return g
}

// Gain returns the current gain
func (g *GainNode) Gain() float64 {
	g.ctx.mu.Lock()
	defer g.ctx.mu.Unlock()
	return g.gain
}

// SetGain sets the gain; any value is accepted, including negative
func (g *GainNode) SetGain(v float64) {
	g.ctx.mu.Lock()
	defer g.ctx.mu.Unlock()
	g.gain = v
}

func (g *GainNode) process(in [][]float32, frame int64, out [][]float32) {
	k := float32(g.gain)
	for ch := range out {
		for i, v := range in[ch] {
			out[ch][i] = v * k
		}
	}
}

// DestinationNode is the sink every audible path ends in
type DestinationNode struct {
	node
}

func newDestination(c *Context) *DestinationNode {
	d := &DestinationNode{}
	d.node = newNode(c, d, 1, 0)
	return d
}

func (d *DestinationNode) process(in [][]float32, frame int64, out [][]float32) {
	for ch := range out {
		copy(out[ch], in[ch])
	}
}
