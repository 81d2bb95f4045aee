// Package buildinfo carries version metadata injected at link time:
//
//	go build -ldflags "-X tracker.junat.live/internal/buildinfo.Version=1.2.0 \
//	  -X tracker.junat.live/internal/buildinfo.CommitHash=$(git rev-parse HEAD)"
package buildinfo

import "runtime/debug"

var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
)

// Revision returns CommitHash, falling back to the VCS revision recorded by
// the Go toolchain.
func Revision() string {
	if CommitHash != "" {
		return CommitHash
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// ShortRevision is the first seven characters of Revision.
func ShortRevision() string {
	rev := Revision()
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
