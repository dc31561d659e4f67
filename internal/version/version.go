// Package version provides version information.
package version

import (
	"fmt"
	"runtime"
)

const (
	// Version is the current version of cp-debugger
	Version = "0.2.0"

	// Name is the program name reported to clients
	Name = "cp-debugger"
)

// GetVersion returns the current version
func GetVersion() string {
	return Version
}

// String returns the version line printed by -version
func String() string {
	return fmt.Sprintf("%s %s (%s %s/%s)", Name, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
