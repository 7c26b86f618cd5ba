// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package disk

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

// OSPaths maps each Directory to a filesystem path.
type OSPaths struct {
	Manifests string
	Downloads string
	Groups    string
	State     string
}

// OSDriver stores files on the local filesystem.
type OSDriver struct {
	paths OSPaths
}

// NewOS returns a driver rooted at the given paths. Directories are
// created on first write.
func NewOS(paths OSPaths) *OSDriver {
	return &OSDriver{paths: paths}
}

func (d *OSDriver) dirPath(dir Directory) string {
	switch dir {
	case Manifests:
		return d.paths.Manifests
	case Downloads:
		return d.paths.Downloads
	case Groups:
		return d.paths.Groups
	case State:
		return d.paths.State
	default:
		return ""
	}
}

func (d *OSDriver) filePath(dir Directory, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	base := d.dirPath(dir)
	if base == "" {
		return "", fmt.Errorf("no path configured for %s", dir)
	}
	return filepath.Join(base, name), nil
}

// Path returns the filesystem path of a file. Used by tooling that
// hands paths to external readers.
func (d *OSDriver) Path(dir Directory, name string) (string, error) {
	return d.filePath(dir, name)
}

func (d *OSDriver) ReadFile(dir Directory, name string) ([]byte, error) {
	path, err := d.filePath(dir, name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// WriteFile writes to a temporary file in the same directory, fsyncs,
// renames into place, and syncs the directory.
func (d *OSDriver) WriteFile(dir Directory, name string, data []byte) error {
	path, err := d.filePath(dir, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	temporaryPath := filepath.Join(filepath.Dir(path), "."+name+".tmp")
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return err
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}

func (d *OSDriver) Open(dir Directory, name string) (io.ReadCloser, error) {
	path, err := d.filePath(dir, name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (d *OSDriver) Append(dir Directory, name string, truncate bool) (io.WriteCloser, error) {
	path, err := d.filePath(dir, name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(path, flags, 0644)
}

func (d *OSDriver) Remove(dir Directory, name string) error {
	path, err := d.filePath(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *OSDriver) Stat(dir Directory, name string) (FileInfo, error) {
	path, err := d.filePath(dir, name)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return FileInfo{}, nil
	}
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Exists: true, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (d *OSDriver) List(dir Directory) ([]string, error) {
	base := d.dirPath(dir)
	if base == "" {
		return nil, fmt.Errorf("no path configured for %s", dir)
	}
	entries, err := os.ReadDir(base)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || entry.Name()[0] == '.' {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// FreeSpace reports the blocks available to unprivileged users on the
// filesystem holding dir. A directory that does not exist yet is
// measured at its nearest existing ancestor.
func (d *OSDriver) FreeSpace(dir Directory) (int64, error) {
	path := d.dirPath(dir)
	if path == "" {
		return 0, fmt.Errorf("no path configured for %s", dir)
	}
	for {
		var stat unix.Statfs_t
		err := unix.Statfs(path, &stat)
		if err == nil {
			return int64(stat.Bavail) * int64(stat.Bsize), nil
		}
		parent := filepath.Dir(path)
		if !errors.Is(err, unix.ENOENT) || parent == path {
			return 0, err
		}
		path = parent
	}
}
