// ABOUTME: Error kinds for the euphony layer
// ABOUTME: Sentinels plus typed errors that match them with errors.Is
package euphony

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError
	ErrConfiguration = errors.New("configuration error")
	// ErrConnection is returned when audio bytes cannot be fetched
	ErrConnection = errors.New("connection error")
	// ErrDecode is returned when fetched bytes are not decodable audio
	ErrDecode = errors.New("decode error")
	// ErrTopology is matched by every *TopologyError
	ErrTopology = errors.New("topology error")
)

// ConfigurationError reports an out-of-range option at the point of assignment
type ConfigurationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Message)
}

// Is makes errors.Is(err, ErrConfiguration) true
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// LoadError reports a failed Load. Kind is ErrConnection or ErrDecode.
type LoadError struct {
	Kind error
	URL  string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v: %v", e.URL, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause
func (e *LoadError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// TopologyError reports an invalid connection or group structure
type TopologyError struct {
	Message string
	Err     error
}

func (e *TopologyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("topology error: %s: %v", e.Message, e.Err)
	}
	return "topology error: " + e.Message
}

// Is makes errors.Is(err, ErrTopology) true
func (e *TopologyError) Is(target error) bool {
	return target == ErrTopology
}

func (e *TopologyError) Unwrap() error { return e.Err }
