// ABOUTME: Process-wide engine context
// ABOUTME: Lazily creates the shared context used when options name none
package euphony

import (
	"sync"

	"github.com/harperreed/euphony-go/pkg/engine"
)

var (
	defaultOnce    sync.Once
	defaultContext *engine.Context
)

// DefaultContext returns the shared context, creating it on first use.
// The caller is responsible for running it against an output.
func DefaultContext() *engine.Context {
	defaultOnce.Do(func() {
		defaultContext = engine.NewContext(engine.Options{})
	})
	return defaultContext
}

func contextOrDefault(ctx *engine.Context) *engine.Context {
	if ctx != nil {
		return ctx
	}
	return DefaultContext()
}
