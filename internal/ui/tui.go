// ABOUTME: TUI initialization and player control channel
// ABOUTME: Wraps the bubbletea program and carries key commands back to the player
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// CommandKind is a player action requested from the keyboard
type CommandKind int

const (
	CmdPlay CommandKind = iota
	CmdPause
	CmdStop
	CmdSync
	CmdVolume
	CmdQuit
)

// Command is sent on Controls.Commands; Volume is set for CmdVolume
type Command struct {
	Kind   CommandKind
	Volume int
}

// Controls carries commands from the TUI to the player
type Controls struct {
	Commands chan Command
}

// NewControls creates a buffered command channel
func NewControls() *Controls {
	return &Controls{Commands: make(chan Command, 10)}
}

// NewModel creates a new TUI model; controls may be nil
func NewModel(controls *Controls, volume int) Model {
	return Model{
		volume:   volume,
		state:    "stopped",
		controls: controls,
	}
}

// Run creates the TUI program; the caller starts it with Run and feeds it
// StatusMsg values with Send
func Run(controls *Controls, volume int) *tea.Program {
	return tea.NewProgram(NewModel(controls, volume), tea.WithAltScreen())
}
