// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides Decoder interface and whole-payload decoders for WAV, FLAC, MP3, Vorbis, Opus
// Package decode turns complete encoded payloads into planar float32 PCM.
//
// Supports: WAV (PCM), FLAC, MP3, Ogg Vorbis, Ogg Opus
//
// The container is detected from the payload's magic bytes, so callers do not
// need to know the file extension.
//
// Example:
//
//	pcm, err := decode.Decode(data)
//	fmt.Println(pcm.Format.SampleRate, pcm.Frames())
package decode
