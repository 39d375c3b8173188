// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio encoders
package encode

// Encoder encodes planar float32 blocks in [-1, 1]
type Encoder interface {
	// Open fixes the stream format before the first Write
	Open(sampleRate, channels int) error

	// Write encodes one block, one slice per channel
	Write(block [][]float32) error

	// Close flushes the encoded stream
	Close() error
}
