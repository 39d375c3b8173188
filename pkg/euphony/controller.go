// ABOUTME: Controller capability shared by every producer
// ABOUTME: Gain stage feeding an owned Analyser, plus the Producer interface
package euphony

import (
	"github.com/google/uuid"

	"github.com/harperreed/euphony-go/pkg/engine"
)

// DefaultDelay is the scheduling lead used by Play, Pause and Stop, in seconds
const DefaultDelay = 0.1

// Kind tags the concrete producer type
type Kind int

const (
	KindPlayback Kind = iota
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindPlayback:
		return "playback"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Producer is a Playback or a Group. It cannot be implemented outside this package.
type Producer interface {
	Node
	Kind() Kind
	ID() string

	Play() error
	Pause() error
	Stop() error
	PlayIn(delay float64) error
	PauseIn(delay float64) error
	StopIn(delay float64) error

	producer()
}

// Controller owns a gain stage and an Analyser: gain -> analyser -> output
type Controller struct {
	id       string
	ctx      *engine.Context
	gain     *engine.GainNode
	analyser *Analyser
}

func newController(opts ControllerOptions) (*Controller, error) {
	if err := validateStruct(&opts); err != nil {
		return nil, err
	}

	ctx := contextOrDefault(opts.Context)
	analyser, err := NewAnalyser(ctx, opts.Analyser)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		id:       uuid.New().String(),
		ctx:      ctx,
		gain:     ctx.CreateGain(),
		analyser: analyser,
	}
	if opts.Volume != nil {
		c.gain.SetGain(*opts.Volume)
	}
	if err := c.gain.Connect(analyser.Input()); err != nil {
		return nil, err
	}
	return c, nil
}

// ID is a stable identifier used in logs and visualizer frames
func (c *Controller) ID() string { return c.id }

// Context returns the engine context the controller lives in
func (c *Controller) Context() *engine.Context { return c.ctx }

// Analyser returns the owned analyser
func (c *Controller) Analyser() *Analyser { return c.analyser }

// Volume returns the gain value
func (c *Controller) Volume() float64 { return c.gain.Gain() }

// SetVolume sets the gain value; it is passed through unchanged
func (c *Controller) SetVolume(v float64) { c.gain.SetGain(v) }

// Output is the analyser's output
func (c *Controller) Output() engine.Node { return c.analyser.Output() }

// Connect routes the controller output into dst
func (c *Controller) Connect(dst Node) error { return connect(c.Output(), dst) }

// Disconnect removes every outgoing connection
func (c *Controller) Disconnect() { c.Output().Disconnect() }

// DisconnectFrom removes the connection into dst
func (c *Controller) DisconnectFrom(dst Node) error { return disconnect(c.Output(), dst) }

// at converts a delay to an absolute context time
func (c *Controller) at(delay float64) (float64, error) {
	if err := validateVar("delay", delay, "gte=0"); err != nil {
		return 0, err
	}
	return c.ctx.CurrentTime() + delay, nil
}
