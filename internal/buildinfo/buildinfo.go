// Package buildinfo reports what binary is running. Release builds stamp
// the variables below with -ldflags "-X"; development builds fall back to
// the VCS metadata the Go toolchain embeds.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Stamped at link time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Current returns the metadata for this process. Fields left unstamped
// are filled from the toolchain's vcs settings when present.
func Current() Build {
	b := Build{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && b.GitCommit == "unknown":
			b.GitCommit = shortCommit(s.Value)
		case s.Key == "vcs.time" && b.BuildTime == "unknown":
			b.BuildTime = s.Value
		}
	}
	return b
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String is the one-line banner logged at startup.
func (b Build) String() string {
	return fmt.Sprintf("Krish %s (%s) built %s", b.Version, b.GitCommit, b.BuildTime)
}

// UserAgent is sent on every outbound HTTP request.
func UserAgent() string {
	return fmt.Sprintf("Krish/%s (+%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
