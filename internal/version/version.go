// ABOUTME: Build identification for the euphony tools
// ABOUTME: Version may be overridden at link time with -ldflags "-X"
package version

import "fmt"

// Version is the release, set with -ldflags "-X github.com/harperreed/euphony-go/internal/version.Version=..."
var Version = "0.1.0"

const (
	Product      = "euphony"
	Manufacturer = "harperreed"
)

// String returns "euphony 0.1.0"
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
