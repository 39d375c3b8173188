// ABOUTME: Entry point for the euphony terminal player
// ABOUTME: Loads tracks into a synchronized group, plays them, and optionally serves the visualizer
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/euphony-go/internal/discovery"
	"github.com/harperreed/euphony-go/internal/fetch"
	"github.com/harperreed/euphony-go/internal/server"
	"github.com/harperreed/euphony-go/internal/ui"
	"github.com/harperreed/euphony-go/internal/version"
	"github.com/harperreed/euphony-go/pkg/audio/output"
	"github.com/harperreed/euphony-go/pkg/engine"
	"github.com/harperreed/euphony-go/pkg/euphony"
	"golang.org/x/sync/errgroup"
)

var (
	volume     = flag.Int("volume", 100, "Initial volume (0-100)")
	loop       = flag.Bool("loop", false, "Loop every track")
	fftSize    = flag.Int("fft", engine.DefaultFFTSize, "Analyser FFT size (power of two, 32-32768)")
	bands      = flag.Int("bands", euphony.DefaultNumberOfBands, "Number of analyser bands")
	threshold  = flag.Float64("threshold", euphony.DefaultThreshold, "Signal threshold (0-1)")
	delay      = flag.Float64("delay", euphony.DefaultDelay, "Scheduling delay in seconds for transport commands")
	servePort  = flag.Int("serve", 0, "Serve the visualizer stream on this port (0 = disabled)")
	advertise  = flag.Bool("advertise", false, "Advertise the visualizer server over mDNS")
	discover   = flag.Bool("discover", false, "List visualizer servers on the network and exit")
	name       = flag.String("name", "", "Visualizer server name (default: hostname-euphony)")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	noAudio    = flag.Bool("no-audio", false, "Render without an audio device")
	logFile    = flag.String("log-file", "euphony.log", "Log file path")
	cacheDir   = flag.String("cache-dir", "", "Cache downloaded tracks in this directory")
	sampleRate = flag.Int("sample-rate", engine.DefaultSampleRate, "Output sample rate")
)

// track is one loaded playback and the URL it came from
type track struct {
	url      string
	playback *euphony.Playback
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\nUsage: %s [flags] <file-or-url>...\n\n", version.String(), os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI && !*discover {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	if *discover {
		discoverServers(5 * time.Second)
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-%s", hostname, version.Product)
	}

	log.Printf("Starting %s", version.String())

	actx := engine.NewContext(engine.Options{SampleRate: *sampleRate})

	fetcher, err := fetch.New(fetch.Options{CacheDir: *cacheDir, Timeout: 30 * time.Second})
	if err != nil {
		log.Fatalf("Failed to create fetcher: %v", err)
	}

	analyser := euphony.AnalyserOptions{
		FFTSize:       euphony.Int(*fftSize),
		NumberOfBands: euphony.Int(*bands),
		Threshold:     euphony.Float64(*threshold),
	}

	group, err := euphony.NewGroup(euphony.GroupOptions{
		ControllerOptions: euphony.ControllerOptions{
			Context:  actx,
			Volume:   euphony.Float64(float64(*volume) / 100),
			Analyser: analyser,
		},
	})
	if err != nil {
		log.Fatalf("Invalid options: %v", err)
	}
	if err := group.Connect(euphony.Destination(actx)); err != nil {
		log.Fatalf("Failed to connect group: %v", err)
	}

	tracks := make([]track, 0, flag.NArg())
	for _, url := range flag.Args() {
		p, err := euphony.NewPlayback(euphony.PlaybackOptions{
			ControllerOptions: euphony.ControllerOptions{Context: actx, Analyser: analyser},
			Loop:              *loop,
			Fetcher:           fetcher,
		})
		if err != nil {
			log.Fatalf("Invalid options: %v", err)
		}
		if err := group.Add(p); err != nil {
			log.Fatalf("Failed to add track: %v", err)
		}
		tracks = append(tracks, track{url: url, playback: p})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loadTracks(ctx, tracks); err != nil {
		log.Fatalf("Load failed: %v", err)
	}

	if err := group.Sync(); err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	var out output.Output = output.NewOto()
	if *noAudio {
		out = output.NewNull(true)
	}

	engineErr := make(chan error, 1)
	go func() {
		engineErr <- actx.Run(ctx, out)
	}()

	var srv *server.Server
	if *servePort > 0 {
		srv = server.New(server.Config{
			Port:       *servePort,
			Name:       serverName,
			EnableMDNS: *advertise,
		})
		srv.Register("group", group.Analyser())
		for i, t := range tracks {
			srv.Register(fmt.Sprintf("track-%d", i+1), t.playback.Analyser())
		}
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Printf("Visualizer server error: %v", err)
			}
		}()
	}

	var tuiProg *tea.Program
	var controls *ui.Controls
	if useTUI {
		controls = ui.NewControls()
		tuiProg = ui.Run(controls, *volume)
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
		if *servePort > 0 {
			tuiProg.Send(ui.StatusMsg{ServerAddr: fmt.Sprintf(":%d", *servePort)})
		}
	}

	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	if err := group.PlayIn(*delay); err != nil {
		log.Printf("Play failed: %v", err)
	}

	finished := make(chan struct{})
	go analysisLoop(ctx, group, tracks, updateTUI, finished)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var quit <-chan struct{}
	if controls != nil {
		q := make(chan struct{})
		go handleCommands(ctx, group, controls, *delay, q)
		quit = q
	}

	select {
	case <-quit:
		log.Printf("Received quit from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case <-finished:
		log.Printf("All tracks finished")
	case err := <-engineErr:
		log.Printf("Audio engine stopped: %v", err)
	}

	if err := group.StopIn(0); err != nil {
		log.Printf("Stop failed: %v", err)
	}
	if tuiProg != nil {
		tuiProg.Quit()
	}
	if srv != nil {
		srv.Stop()
	}
	cancel()

	log.Printf("Player stopped")
}

// loadTracks fetches and decodes every track concurrently
func loadTracks(ctx context.Context, tracks []track) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tracks {
		t := t // per-iteration copy; go.mod targets go1.21 loop semantics
		g.Go(func() error {
			return t.playback.Load(gctx, t.url, euphony.LoadCallbacks{
				OnLoad: func() {
					log.Printf("Loaded %s (%.2fs)", t.url, t.playback.BufferDuration())
				},
			})
		})
	}
	return g.Wait()
}

// analysisLoop refreshes every analyser, feeds the TUI, and closes finished
// once all non-looping tracks have stopped
func analysisLoop(ctx context.Context, group *euphony.Group, tracks []track, updateTUI func(ui.StatusMsg), finished chan<- struct{}) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	statusTicker := time.NewTicker(250 * time.Millisecond)
	defer statusTicker.Stop()

	started := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh(group.Analyser())
			for _, t := range tracks {
				refresh(t.playback.Analyser())
			}
		case <-statusTicker.C:
			status, playing := trackStatus(tracks)
			a := group.Analyser()
			vol := int(group.Volume()*100 + 0.5)
			updateTUI(ui.StatusMsg{
				State:     groupState(tracks).String(),
				Volume:    &vol,
				Tracks:    status,
				Bands:     a.Bands(),
				Amplitude: a.Amplitude(),
				Signal:    a.Signal(),
			})

			if playing {
				started = true
			} else if started && !*loop && groupState(tracks) == euphony.Stopped {
				close(finished)
				return
			}
		}
	}
}

func refresh(a *euphony.Analyser) {
	a.UpdateFrequency()
	a.UpdateWaveform()
}

func trackStatus(tracks []track) ([]ui.TrackStatus, bool) {
	status := make([]ui.TrackStatus, len(tracks))
	playing := false
	for i, t := range tracks {
		state := t.playback.State()
		if state == euphony.Playing {
			playing = true
		}
		status[i] = ui.TrackStatus{
			Name:     filepath.Base(t.url),
			State:    state.String(),
			Position: t.playback.PlaybackTime(),
			Duration: t.playback.BufferDuration(),
		}
	}
	return status, playing
}

// groupState is Playing if any track plays, else Paused if any is paused
func groupState(tracks []track) euphony.State {
	state := euphony.Stopped
	for _, t := range tracks {
		switch t.playback.State() {
		case euphony.Playing:
			return euphony.Playing
		case euphony.Paused:
			state = euphony.Paused
		}
	}
	return state
}

// handleCommands applies TUI key commands to the group
func handleCommands(ctx context.Context, group *euphony.Group, controls *ui.Controls, delay float64, quit chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-controls.Commands:
			var err error
			switch cmd.Kind {
			case ui.CmdPlay:
				err = group.PlayIn(delay)
			case ui.CmdPause:
				err = group.PauseIn(delay)
			case ui.CmdStop:
				err = group.StopIn(delay)
			case ui.CmdSync:
				err = group.Sync()
			case ui.CmdVolume:
				group.SetVolume(float64(cmd.Volume) / 100)
				log.Printf("Volume change: %d%%", cmd.Volume)
			case ui.CmdQuit:
				close(quit)
				return
			}
			if err != nil {
				log.Printf("Command failed: %v", err)
			}
		}
	}
}

// discoverServers logs every visualizer server found before timeout
func discoverServers(timeout time.Duration) {
	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()

	disc.Browse(timeout)
	log.Printf("Browsing for %s servers...", discovery.ServiceType)

	deadline := time.After(timeout)
	seen := make(map[string]bool)
	for {
		select {
		case srv, ok := <-disc.Servers():
			if !ok {
				return
			}
			if url := srv.URL(); !seen[url] {
				seen[url] = true
				fmt.Printf("%s\t%s\n", srv.Name, url)
			}
		case <-deadline:
			if len(seen) == 0 {
				log.Printf("No servers found within %v", timeout)
			}
			return
		}
	}
}
