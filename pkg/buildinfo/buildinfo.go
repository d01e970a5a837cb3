// Package buildinfo exposes version details stamped in at build time.
package buildinfo

import (
	"runtime"
)

// Set via ldflags, e.g.
// -X github.com/otherjamesbrown/reelkit/pkg/buildinfo.Version=v0.3.0
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info holds build information for a binary.
type Info struct {
	Name      string `json:"name" yaml:"name"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns build info for the named binary.
func Get(name string) Info {
	return Info{
		Name:      name,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a one-liner like "v0.3.0 (b806fe7, 2026-02-07T10:30:00Z)".
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}

// UserAgent is sent with outbound render requests.
func UserAgent() string {
	return "reelkit/" + Version
}
