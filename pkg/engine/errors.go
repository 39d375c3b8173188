// ABOUTME: Engine error values
// ABOUTME: Sentinels mirroring the web audio exception kinds
package engine

import "errors"

var (
	// ErrIndexSize is returned for out-of-range parameters
	ErrIndexSize = errors.New("index size error")
	// ErrRange is returned for negative times and offsets
	ErrRange = errors.New("range error")
	// ErrInvalidState is returned when an operation is not allowed in the current state
	ErrInvalidState = errors.New("invalid state")
	// ErrNoInput is returned when connecting to a node without inputs
	ErrNoInput = errors.New("destination node has no inputs")
	// ErrNoOutput is returned when connecting from a node without outputs
	ErrNoOutput = errors.New("source node has no outputs")
	// ErrContextMismatch is returned when connecting nodes of different contexts
	ErrContextMismatch = errors.New("nodes belong to different contexts")
	// ErrCycle is returned when a connection would close a loop
	ErrCycle = errors.New("connection would create a cycle")
	// ErrNotConnected is returned when disconnecting nodes that are not connected
	ErrNotConnected = errors.New("nodes are not connected")
)
