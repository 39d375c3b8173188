// ABOUTME: Decoder interface and format registry
// ABOUTME: Sniffs container magic bytes and dispatches to the matching decoder
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/harperreed/euphony-go/pkg/audio"
)

var (
	// ErrUnknownFormat is returned when no decoder recognizes the payload
	ErrUnknownFormat = errors.New("unknown audio format")
	// ErrEmptyPayload is returned for zero-length input
	ErrEmptyPayload = errors.New("empty audio payload")
)

// Decoder decodes a complete encoded payload to planar PCM
type Decoder interface {
	Decode(data []byte) (*audio.PCM, error)
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(data []byte) (*audio.PCM, error)

// Decode calls f(data)
func (f DecoderFunc) Decode(data []byte) (*audio.PCM, error) { return f(data) }

// Registry maps codec names to decoders
type Registry struct {
	mu     sync.Mutex
	codecs map[string]Decoder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// Register adds or replaces the decoder for a codec
func (r *Registry) Register(codec string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codecs[codec] = d
}

// Get returns the decoder registered for codec
func (r *Registry) Get(codec string) (Decoder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.codecs[codec]
	return d, ok
}

// Decode sniffs the payload and runs the matching decoder
func (r *Registry) Decode(data []byte) (*audio.PCM, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	codec := Sniff(data)
	if codec == "" {
		return nil, ErrUnknownFormat
	}

	d, ok := r.Get(codec)
	if !ok {
		return nil, fmt.Errorf("%w: no decoder registered for %s", ErrUnknownFormat, codec)
	}

	pcm, err := d.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s decode failed: %w", codec, err)
	}
	if err := pcm.Validate(); err != nil {
		return nil, fmt.Errorf("%s decode produced invalid audio: %w", codec, err)
	}
	return pcm, nil
}

// Sniff returns the codec name for a payload, or "" if unrecognized
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("OggS")):
		// Both codecs live in Ogg; the first page carries the codec header
		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		if bytes.Contains(head, []byte("OpusHead")) {
			return "opus"
		}
		if bytes.Contains(head, []byte("vorbis")) {
			return "vorbis"
		}
		return ""
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG frame sync
		return "mp3"
	}
	return ""
}

var defaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", DecoderFunc(DecodeWAV))
	r.Register("flac", DecoderFunc(DecodeFLAC))
	r.Register("mp3", DecoderFunc(DecodeMP3))
	r.Register("vorbis", DecoderFunc(DecodeVorbis))
	r.Register("opus", DecoderFunc(DecodeOpus))
	return r
}

// Default returns the registry with every built-in decoder
func Default() *Registry {
	return defaultRegistry
}

// Decode decodes data with the default registry
func Decode(data []byte) (*audio.PCM, error) {
	return defaultRegistry.Decode(data)
}
