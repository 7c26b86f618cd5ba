// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package zipbundle loads asset bundles packaged as zip archives.
//
// A bundle archive holds its assets at any path outside scenes/, and
// its scenes under scenes/. An archive with at least one scene is a
// scene bundle. Entries may be stored, deflated, or compressed with
// zstd (zip method 93).
//
// Remote bundles are read from the Downloads directory of a
// [disk.Disk], where the downloadables engine keeps verified blobs
// under their catalog id. Local bundles are read from an [fs.FS] as
// <id>.zip.
//
// Every read happens on its own goroutine; the returned requests are
// polled from the asset bundle manager's tick and never block.
package zipbundle
