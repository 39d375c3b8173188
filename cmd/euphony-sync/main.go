// ABOUTME: Headless tool that loads tracks into a group and aligns their lengths
// ABOUTME: Reports buffer lengths before and after sync, then renders offline to check playback
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/harperreed/euphony-go/internal/fetch"
	"github.com/harperreed/euphony-go/pkg/audio/encode"
	"github.com/harperreed/euphony-go/pkg/engine"
	"github.com/harperreed/euphony-go/pkg/euphony"
	"golang.org/x/sync/errgroup"
)

var (
	sampleRate = flag.Int("sample-rate", engine.DefaultSampleRate, "Context sample rate")
	cacheDir   = flag.String("cache-dir", "", "Cache downloaded tracks in this directory")
	length     = flag.Int("length", 0, "Sync to this many frames instead of the longest track")
	render     = flag.Float64("render", 1, "Seconds to render offline after syncing (0 = skip)")
	outFile    = flag.String("out", "", "Write the rendered audio to this WAV file")
	bitDepth   = flag.Int("bit-depth", 16, "WAV bit depth for -out (16 or 24)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file-or-url>...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	fmt.Println("=== Group Sync Check ===")
	fmt.Println("This tool will:")
	fmt.Println("1. Load every track concurrently")
	fmt.Println("2. Pad or trim all buffers to a common length")
	fmt.Println("3. Render the group offline and report analyser output")
	fmt.Println()

	actx := engine.NewContext(engine.Options{SampleRate: *sampleRate})

	fetcher, err := fetch.New(fetch.Options{CacheDir: *cacheDir, Timeout: 30 * time.Second})
	if err != nil {
		log.Fatalf("Failed to create fetcher: %v", err)
	}

	group, err := euphony.NewGroup(euphony.GroupOptions{
		ControllerOptions: euphony.ControllerOptions{Context: actx},
	})
	if err != nil {
		log.Fatalf("Failed to create group: %v", err)
	}
	if err := group.Connect(euphony.Destination(actx)); err != nil {
		log.Fatalf("Failed to connect group: %v", err)
	}

	playbacks := make([]*euphony.Playback, flag.NArg())
	g, gctx := errgroup.WithContext(context.Background())
	for i, url := range flag.Args() {
		p, err := euphony.NewPlayback(euphony.PlaybackOptions{
			ControllerOptions: euphony.ControllerOptions{Context: actx},
			Fetcher:           fetcher,
		})
		if err != nil {
			log.Fatalf("Failed to create playback: %v", err)
		}
		if err := group.Add(p); err != nil {
			log.Fatalf("Failed to add playback: %v", err)
		}
		playbacks[i] = p
		g.Go(func() error {
			return p.Load(gctx, url, euphony.LoadCallbacks{})
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Load failed: %v", err)
	}

	report("Before sync", flag.Args(), playbacks)

	if *length > 0 {
		err = group.SyncTo(*length)
	} else {
		err = group.Sync()
	}
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	report("After sync", flag.Args(), playbacks)

	if *render <= 0 {
		return
	}

	if err := group.PlayIn(0); err != nil {
		log.Fatalf("Play failed: %v", err)
	}
	block := actx.Render(int(*render * float64(actx.SampleRate())))
	if *outFile != "" {
		if err := writeWAV(*outFile, actx, block); err != nil {
			log.Fatalf("Failed to write %s: %v", *outFile, err)
		}
		log.Printf("Wrote %d frames to %s", len(block[0]), *outFile)
	}

	a := group.Analyser()
	a.UpdateFrequency()
	a.UpdateWaveform()
	fmt.Printf("\nRendered %.2fs: amplitude %.3f, signal %v, bands %v\n",
		actx.CurrentTime(), a.Amplitude(), a.Signal(), formatBands(a.Bands()))
	for i, p := range playbacks {
		fmt.Printf("  %d: %s at %.3fs\n", i+1, p.State(), p.PlaybackTime())
	}
}

// writeWAV encodes one rendered block to path
func writeWAV(path string, actx *engine.Context, block [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := encode.NewWAV(f, *bitDepth)
	if err != nil {
		return err
	}
	if err := enc.Open(actx.SampleRate(), actx.Channels()); err != nil {
		return err
	}
	if err := enc.Write(block); err != nil {
		return err
	}
	return enc.Close()
}

func report(title string, urls []string, playbacks []*euphony.Playback) {
	fmt.Printf("%s:\n", title)
	for i, p := range playbacks {
		fmt.Printf("  %d: %8d frames %7.3fs  %s\n", i+1, p.BufferLength(), p.BufferDuration(), urls[i])
	}
}

func formatBands(bands []float64) string {
	s := "["
	for i, b := range bands {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.2f", b)
	}
	return s + "]"
}
