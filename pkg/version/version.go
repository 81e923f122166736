// Package version holds build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Version is set at build time:
//
//	-X github.com/Aman-CERP/claimrag/pkg/version.Version=v0.3.0
var Version = "dev"

var (
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo is the JSON form of `claimrag version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("claimrag %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
