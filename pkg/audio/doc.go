// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, PCM types and sample conversion functions
// Package audio provides fundamental audio types shared by the decoders, the
// resampler and the output sinks.
//
// This package defines:
//   - Format: Describes a decoded stream (codec, sample rate, channels, bit depth)
//   - PCM: Planar float32 audio as produced by the decoders
//
// It also provides utilities for converting between integer and float samples.
//
// Example:
//
//	pcm := audio.NewPCM(audio.Format{SampleRate: 48000, Channels: 2}, 1024)
//	pcm.Channels[0][0] = audio.SampleFromInt16(sample16)
package audio
