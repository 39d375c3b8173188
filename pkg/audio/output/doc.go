// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output interface with oto and null implementations
// Package output provides the sinks the engine renders into.
//
// Oto plays through the default system device; Null discards audio and can
// pace itself to wall-clock time for headless use.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(48000, 2)
//	err = out.Write(block)
package output
