// ABOUTME: Euphony wrapper package
// ABOUTME: Playback, Group, Controller and Analyser built on the engine graph
// Package euphony is a thin object layer over pkg/engine that adds
// hierarchical grouping of audio sources for synchronized playback,
// per-node volume control, and frequency/waveform analysis with log-scale
// banding and edge-triggered signal detection.
//
// Every producer is a Controller: a gain stage feeding an Analyser. A
// Playback owns one decoded buffer and a ready-to-start source; a Group
// broadcasts transport calls to its children and can stretch every
// descendant buffer to a common length so loops stay aligned.
//
// Example:
//
//	p, _ := euphony.NewPlayback(euphony.PlaybackOptions{})
//	_ = p.Connect(euphony.Destination(euphony.DefaultContext()))
//	if err := p.Load(ctx, "song.mp3", euphony.LoadCallbacks{}); err != nil {
//		log.Fatal(err)
//	}
//	_ = p.Play()
//
//	// each frame
//	a := p.Analyser()
//	a.UpdateFrequency()
//	bands := a.Bands()
package euphony
