// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the dlcache binary.
//
// Four package-level variables may be injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// When GitCommit or BuildTime are not injected, they are filled from
// the VCS stamp the Go toolchain embeds in module builds. Test binaries
// carry no stamp and report "unknown".
//
//	go build -ldflags "-X github.com/bureau-foundation/downloadables/lib/version.Version=1.2.0" ./cmd/dlcache
package version
