// Package version reports the pharmacy-notify build.
package version

import (
	"runtime"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/cristianoliveira/pharmacy-notify/internal/version.Version=1.2.0 \
//	  -X github.com/cristianoliveira/pharmacy-notify/internal/version.Commit=abc1234"
var (
	Version = "development"
	Commit  = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// String returns Version, or the module version of a `go install` build,
// suffixed with +Commit when the commit is known.
func String() string {
	v := Version
	if v == "development" {
		if info, ok := readBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	if Commit == "" || Commit == "unknown" {
		return v
	}
	return v + "+" + Commit
}

// UserAgent is sent with every backend request.
func UserAgent() string {
	return "pharmacy-notify/" + String() + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
