// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Shows transport state, per-track positions, volume and analyser bands
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// TrackStatus describes one playback in the tree
type TrackStatus struct {
	Name     string
	State    string
	Position float64
	Duration float64
}

// Model represents the TUI state
type Model struct {
	// Transport
	state  string
	volume int
	tracks []TrackStatus

	// Analysis
	bands     []float64
	amplitude float64
	signal    bool

	// Visualizer server address, if serving
	serverAddr string

	showDebug bool
	controls  *Controls

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderTracks())
	b.WriteString(m.renderBands())
	b.WriteString(m.renderControls())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	server := "off"
	if m.serverAddr != "" {
		server = m.serverAddr
	}
	return fmt.Sprintf(`┌─ Euphony Player ─────────────────────────────────────┐
│ State:      %-41s │
│ Visualizer: %-41s │
├──────────────────────────────────────────────────────┤
`, m.state, truncate(server, 41))
}

func (m Model) renderTracks() string {
	if len(m.tracks) == 0 {
		return "│ No tracks loaded                                     │\n"
	}

	var b strings.Builder
	for _, tr := range m.tracks {
		fmt.Fprintf(&b, "│ %-28s %-8s %6.1f/%6.1fs │\n",
			truncate(tr.Name, 28), tr.State, tr.Position, tr.Duration)
	}
	return b.String()
}

func (m Model) renderBands() string {
	var b strings.Builder
	b.WriteString("├──────────────────────────────────────────────────────┤\n")
	for i, v := range m.bands {
		fmt.Fprintf(&b, "│ Band %d: [%s] %3.0f%%%-18s │\n", i, renderBar(int(v*100), 100, 20), v*100, "")
	}

	signal := "·"
	if m.signal {
		signal = "●"
	}
	fmt.Fprintf(&b, "│ Level:  [%s] %s%-22s │\n", renderBar(int(m.amplitude*100), 100, 20), signal, "")
	return b.String()
}

func (m Model) renderControls() string {
	return fmt.Sprintf("│ Volume: [%s] %d%%%-27s │\n",
		renderBar(m.volume, 100, 10), m.volume, "")
}

func (m Model) renderDebug() string {
	return fmt.Sprintf("│ DEBUG: amplitude %.4f, %d bands%-21s │\n", m.amplitude, len(m.bands), "")
}

func (m Model) renderHelp() string {
	return `│ space:Play/Pause  s:Stop  y:Sync  ↑/↓:Volume  q:Quit │
└──────────────────────────────────────────────────────┘
`
}

// handleKey maps keys to model changes and player commands
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.send(Command{Kind: CmdQuit})
		return m, tea.Quit
	case " ":
		if m.state == "playing" {
			m.send(Command{Kind: CmdPause})
		} else {
			m.send(Command{Kind: CmdPlay})
		}
	case "s":
		m.send(Command{Kind: CmdStop})
	case "y":
		m.send(Command{Kind: CmdSync})
	case "up":
		m.volume = min(m.volume+5, 100)
		m.send(Command{Kind: CmdVolume, Volume: m.volume})
	case "down":
		m.volume = max(m.volume-5, 0)
		m.send(Command{Kind: CmdVolume, Volume: m.volume})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) send(cmd Command) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Commands <- cmd:
	default:
	}
}

// applyStatus updates the model from a status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.Tracks != nil {
		m.tracks = msg.Tracks
	}
	if msg.Bands != nil {
		m.bands = msg.Bands
		m.amplitude = msg.Amplitude
		m.signal = msg.Signal
	}
	if msg.ServerAddr != "" {
		m.serverAddr = msg.ServerAddr
	}
}

// StatusMsg updates TUI state; zero fields are left unchanged
type StatusMsg struct {
	State      string
	Volume     *int
	Tracks     []TrackStatus
	Bands      []float64
	Amplitude  float64
	Signal     bool
	ServerAddr string
}

func renderBar(value, max, width int) string {
	value = min(value, max)
	filled := (value * width) / max
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
