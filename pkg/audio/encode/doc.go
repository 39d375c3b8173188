// ABOUTME: Audio encoder package for writing rendered audio to files
// ABOUTME: Provides the Encoder interface and a WAV implementation
// Package encode writes planar float32 blocks, as rendered by the engine,
// to encoded files.
//
// Supports: WAV (16-bit and 24-bit PCM)
//
// Every Encoder also satisfies output.Output, so a context can render
// straight to disk:
//
//	f, _ := os.Create("out.wav")
//	enc, err := encode.NewWAV(f, 16)
//	err = ctx.Run(runCtx, enc)
package encode
