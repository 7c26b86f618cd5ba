// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package disk

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Directory identifies one of the cache's storage directories.
type Directory int

const (
	// Manifests holds one manifest per catalog entry.
	Manifests Directory = iota
	// Downloads holds the downloaded blobs.
	Downloads
	// Groups holds one permission record per catalog group.
	Groups
	// State holds internal snapshots.
	State
)

// Directories lists every Directory in declaration order.
var Directories = []Directory{Manifests, Downloads, Groups, State}

func (d Directory) String() string {
	switch d {
	case Manifests:
		return "manifests"
	case Downloads:
		return "downloads"
	case Groups:
		return "groups"
	case State:
		return "state"
	default:
		return fmt.Sprintf("directory(%d)", int(d))
	}
}

// FileInfo is the result of a stat. Exists is false for a missing file,
// in which case the other fields are zero.
type FileInfo struct {
	Exists  bool
	Size    int64
	ModTime time.Time
}

// Driver performs raw file operations. Implementations return plain
// errors; Disk classifies them. Missing files are reported with errors
// wrapping fs.ErrNotExist, except from Stat (Exists false) and Remove
// (no-op).
//
// Drivers must be safe for concurrent use: transfers write through
// Append on their own goroutine while the tick goroutine stats files.
type Driver interface {
	ReadFile(dir Directory, name string) ([]byte, error)

	// WriteFile replaces the file atomically. Readers see either the
	// previous content or the new content, never a mix.
	WriteFile(dir Directory, name string, data []byte) error

	// Open returns a reader over the file's content.
	Open(dir Directory, name string) (io.ReadCloser, error)

	// Append opens the file for appending, creating it if missing.
	// With truncate set, existing content is discarded first.
	Append(dir Directory, name string, truncate bool) (io.WriteCloser, error)

	Remove(dir Directory, name string) error
	Stat(dir Directory, name string) (FileInfo, error)

	// List returns the names of regular files in dir, sorted, skipping
	// names that begin with a dot.
	List(dir Directory) ([]string, error)

	// FreeSpace returns the bytes available to the process in dir.
	FreeSpace(dir Directory) (int64, error)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
