// Package version reports build information for pagesearch.
package version

import (
	"fmt"
	"runtime"
)

// Name is the program name.
const Name = "pagesearch"

// Build information, overridden with ldflags:
//
//	-X github.com/Aman-CERP/pagesearch/pkg/version.Version=v1.2.0
//	-X github.com/Aman-CERP/pagesearch/pkg/version.Commit=abc1234
//	-X github.com/Aman-CERP/pagesearch/pkg/version.Date=2024-01-01T00:00:00Z
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"

	// GoVersion is the toolchain that built the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns the version with all build details on one line.
func String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s, %s/%s)",
		Name, Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version.
func Short() string {
	return Version
}

// IsDev reports whether the binary was built without a release version.
func IsDev() bool {
	return Version == "dev" || Version == ""
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
