// ABOUTME: Hierarchical producer that fans transport calls out to children
// ABOUTME: Rejects cycles and stretches every descendant buffer to a common length
package euphony

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/harperreed/euphony-go/pkg/engine"
)

// Group broadcasts play, pause and stop to its children in insertion order.
// Children connect into the group's gain stage.
type Group struct {
	*Controller

	mu       sync.Mutex
	children []Producer
}

// NewGroup creates an empty group
func NewGroup(opts GroupOptions) (*Group, error) {
	c, err := newController(opts.ControllerOptions)
	if err != nil {
		return nil, err
	}
	return &Group{Controller: c}, nil
}

func (g *Group) producer() {}

// Kind returns KindGroup
func (g *Group) Kind() Kind { return KindGroup }

// Input is the group's gain stage
func (g *Group) Input() engine.Node { return g.gain }

// Children returns the direct children in insertion order
func (g *Group) Children() []Producer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.children)
}

// Add appends children and connects them into the group. A nil child, a
// duplicate, the group itself, or a group that already contains this one
// fails with a TopologyError and nothing after it is added.
func (g *Group) Add(children ...Producer) error {
	for _, child := range children {
		if err := g.add(child); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) add(child Producer) error {
	if child == nil {
		return &TopologyError{Message: "nil child"}
	}
	if sub, ok := child.(*Group); ok {
		if sub == g {
			return &TopologyError{Message: "group cannot contain itself"}
		}
		if sub.contains(g) {
			return &TopologyError{Message: fmt.Sprintf("group %s is an ancestor of %s", sub.id, g.id)}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if slices.Contains(g.children, child) {
		return &TopologyError{Message: fmt.Sprintf("%s %s already in group", child.Kind(), child.ID())}
	}
	if err := connect(child.Output(), g); err != nil {
		return err
	}
	g.children = append(g.children, child)
	return nil
}

// Remove disconnects child and drops it from the group
func (g *Group) Remove(child Producer) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := slices.Index(g.children, child)
	if i < 0 {
		return &TopologyError{Message: "child not in group"}
	}
	if err := disconnect(child.Output(), g); err != nil {
		return err
	}
	g.children = slices.Delete(g.children, i, i+1)
	return nil
}

// contains reports whether target is g or one of its descendants
func (g *Group) contains(target *Group) bool {
	found := false
	_ = g.walk(func(child Producer) error {
		if sub, ok := child.(*Group); ok && sub == target {
			found = true
		}
		return nil
	})
	return found || g == target
}

// walk visits every descendant depth-first in insertion order. It fails with
// a TopologyError if a group is reached again along its own path.
func (g *Group) walk(visit func(Producer) error) error {
	return g.walkPath(map[*Group]bool{}, visit)
}

func (g *Group) walkPath(path map[*Group]bool, visit func(Producer) error) error {
	if path[g] {
		return &TopologyError{Message: fmt.Sprintf("cycle through group %s", g.id)}
	}
	path[g] = true
	defer delete(path, g)

	for _, child := range g.Children() {
		if err := visit(child); err != nil {
			return err
		}
		if sub, ok := child.(*Group); ok {
			if err := sub.walkPath(path, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// Play broadcasts Play to every child
func (g *Group) Play() error { return g.PlayIn(DefaultDelay) }

// Pause broadcasts Pause to every child
func (g *Group) Pause() error { return g.PauseIn(DefaultDelay) }

// Stop broadcasts Stop to every child
func (g *Group) Stop() error { return g.StopIn(DefaultDelay) }

// PlayIn broadcasts PlayIn(delay) to every child
func (g *Group) PlayIn(delay float64) error {
	return g.broadcast(delay, Producer.PlayIn)
}

// PauseIn broadcasts PauseIn(delay) to every child
func (g *Group) PauseIn(delay float64) error {
	return g.broadcast(delay, Producer.PauseIn)
}

// StopIn broadcasts StopIn(delay) to every child
func (g *Group) StopIn(delay float64) error {
	return g.broadcast(delay, Producer.StopIn)
}

// broadcast calls fn on each direct child. Every child is attempted; the
// failures are joined.
func (g *Group) broadcast(delay float64, fn func(Producer, float64) error) error {
	if _, err := g.at(delay); err != nil {
		return err
	}
	if err := g.walk(func(Producer) error { return nil }); err != nil {
		return err
	}

	var errs []error
	for _, child := range g.Children() {
		if err := fn(child, delay); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", child.Kind(), child.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// MaxBufferLength returns the longest buffer among all descendant playbacks
func (g *Group) MaxBufferLength() (int, error) {
	longest := 0
	err := g.walk(func(child Producer) error {
		switch c := child.(type) {
		case *Playback:
			longest = max(longest, c.BufferLength())
		case *Group:
			// descended into by walk
		}
		return nil
	})
	return longest, err
}

// Sync resizes every descendant playback buffer to the longest one
func (g *Group) Sync() error {
	length, err := g.MaxBufferLength()
	if err != nil {
		return err
	}
	return g.SyncTo(length)
}

// SyncTo resizes every descendant playback buffer to length frames
func (g *Group) SyncTo(length int) error {
	if err := validateVar("length", length, "gte=0"); err != nil {
		return err
	}

	log.Printf("Group %s syncing buffers to %d frames", g.id, length)
	return g.walk(func(child Producer) error {
		switch c := child.(type) {
		case *Playback:
			if err := c.AdjustBuffer(length); err != nil {
				return fmt.Errorf("playback %s: %w", c.ID(), err)
			}
		case *Group:
			// descended into by walk
		}
		return nil
	})
}
