// Package version reports the build version of the companion.
//
// Release builds set Version and Commit with ldflags:
//
//	go build -ldflags "-X github.com/ramonehamilton/MTGO-Companion/internal/version.Version=v1.2.3"
package version

import "runtime/debug"

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the source revision. Read from build info when not set.
	Commit = ""
)

// String returns the version with its commit, if known.
func String() string {
	commit := Commit
	if commit == "" {
		commit = vcsRevision()
	}
	if commit == "" {
		return Version
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return Version + " (" + commit + ")"
}

func vcsRevision() string {
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
