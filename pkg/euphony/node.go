// ABOUTME: Connectable node capability
// ABOUTME: Input/output endpoints over engine nodes and topology-checked connect
package euphony

import (
	"fmt"

	"github.com/harperreed/euphony-go/pkg/engine"
)

// Node is anything with engine endpoints. Input returns nil when the node
// cannot be connected into; Output returns nil when it cannot feed others.
type Node interface {
	Input() engine.Node
	Output() engine.Node
}

type destination struct {
	node engine.Node
}

func (d destination) Input() engine.Node  { return d.node }
func (d destination) Output() engine.Node { return nil }

// Destination wraps a context's destination so producers can connect to it
func Destination(ctx *engine.Context) Node {
	return destination{node: contextOrDefault(ctx).Destination()}
}

// connect routes src into dst's input
func connect(src engine.Node, dst Node) error {
	if dst == nil {
		return &TopologyError{Message: "nil destination"}
	}
	in := dst.Input()
	if in == nil {
		return &TopologyError{Message: fmt.Sprintf("%T has no input", dst)}
	}
	if err := src.Connect(in); err != nil {
		return &TopologyError{Message: "connect failed", Err: err}
	}
	return nil
}

// disconnect removes the route from src into dst's input
func disconnect(src engine.Node, dst Node) error {
	if dst == nil || dst.Input() == nil {
		return &TopologyError{Message: fmt.Sprintf("%T has no input", dst)}
	}
	if err := src.DisconnectFrom(dst.Input()); err != nil {
		return &TopologyError{Message: "disconnect failed", Err: err}
	}
	return nil
}
