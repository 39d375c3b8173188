// ABOUTME: Software audio graph package
// ABOUTME: Provides context, gain, analyser and buffer-source nodes rendered in quanta
// Package engine is a small pull-model audio graph modeled on the web audio
// API: a Context owns a clock and a destination, nodes are connected into a
// directed graph, and rendering pulls fixed-size quanta from the destination.
//
// Decoding is delegated to pkg/audio/decode, FFT to gonum's dsp/fourier, and
// device output to pkg/audio/output. The engine itself only schedules, sums
// and scales.
//
// Example:
//
//	ctx := engine.NewContext(engine.Options{SampleRate: 48000, Channels: 2})
//	buf, _ := ctx.DecodeAudioData(data)
//	src := ctx.CreateBufferSource()
//	src.SetBuffer(buf)
//	src.Connect(ctx.Destination())
//	src.Start(ctx.CurrentTime()+0.1, 0)
//	go ctx.Run(runCtx, output.NewOto())
//
// All graph state is guarded by the context's mutex; it is safe to control
// nodes from one goroutine while Run renders on another.
package engine
