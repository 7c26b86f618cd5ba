// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

type stamp struct {
	commit    string
	dirty     bool
	buildTime string
}

var buildStamp = sync.OnceValue(func() stamp {
	s := stamp{commit: GitCommit, dirty: GitDirty == "true", buildTime: BuildTime}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	return mergeSettings(s, info.Settings)
})

// mergeSettings fills the fields still "unknown" from the toolchain's
// vcs.* build settings.
func mergeSettings(s stamp, settings []debug.BuildSetting) stamp {
	fromVCS := s.commit == "unknown"
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if fromVCS {
				s.commit = shortRevision(setting.Value)
			}
		case "vcs.modified":
			if fromVCS && setting.Value == "true" {
				s.dirty = true
			}
		case "vcs.time":
			if s.buildTime == "unknown" {
				s.buildTime = setting.Value
			}
		}
	}
	return s
}

func shortRevision(revision string) string {
	if len(revision) > 7 {
		return revision[:7]
	}
	return revision
}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	return buildStamp().info()
}

func (s stamp) info() string {
	dirty := ""
	if s.dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, s.commit, dirty, s.buildTime)
}

// Full returns detailed version information including Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the git commit SHA.
func Commit() string {
	return buildStamp().commit
}
