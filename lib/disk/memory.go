// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package disk

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"sync"
	"time"
)

// MemoryDriver keeps files in memory. Faults can be injected per file or
// per directory to exercise error paths, and Capacity bounds the total
// bytes stored.
type MemoryDriver struct {
	mu       sync.Mutex
	files    map[memoryKey]*memoryFile
	faults   map[memoryKey]error
	capacity int64
	now      func() time.Time
}

type memoryKey struct {
	dir  Directory
	name string
}

type memoryFile struct {
	data    []byte
	modTime time.Time
}

// NewMemory returns an empty in-memory driver with unlimited capacity.
func NewMemory() *MemoryDriver {
	return &MemoryDriver{
		files:    make(map[memoryKey]*memoryFile),
		faults:   make(map[memoryKey]error),
		capacity: -1,
		now:      time.Now,
	}
}

// SetCapacity bounds the total stored bytes. Negative means unlimited.
func (d *MemoryDriver) SetCapacity(bytes int64) {
	d.mu.Lock()
	d.capacity = bytes
	d.mu.Unlock()
}

// SetNow replaces the time source used for modification times.
func (d *MemoryDriver) SetNow(now func() time.Time) {
	d.mu.Lock()
	d.now = now
	d.mu.Unlock()
}

// SetFault makes every operation on the named file fail with err until
// ClearFault. An empty name applies to the whole directory.
func (d *MemoryDriver) SetFault(dir Directory, name string, err error) {
	d.mu.Lock()
	d.faults[memoryKey{dir, name}] = err
	d.mu.Unlock()
}

// ClearFault removes a fault installed with SetFault.
func (d *MemoryDriver) ClearFault(dir Directory, name string) {
	d.mu.Lock()
	delete(d.faults, memoryKey{dir, name})
	d.mu.Unlock()
}

// Put stores a file directly, bypassing faults and capacity.
func (d *MemoryDriver) Put(dir Directory, name string, data []byte) {
	d.mu.Lock()
	d.files[memoryKey{dir, name}] = &memoryFile{data: bytes.Clone(data), modTime: d.now()}
	d.mu.Unlock()
}

// Get returns a copy of a stored file.
func (d *MemoryDriver) Get(dir Directory, name string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	file, ok := d.files[memoryKey{dir, name}]
	if !ok {
		return nil, false
	}
	return bytes.Clone(file.data), true
}

// faultLocked must be called with mu held.
func (d *MemoryDriver) faultLocked(dir Directory, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err, ok := d.faults[memoryKey{dir, name}]; ok {
		return err
	}
	if err, ok := d.faults[memoryKey{dir, ""}]; ok {
		return err
	}
	return nil
}

func (d *MemoryDriver) usedLocked() int64 {
	var used int64
	for _, file := range d.files {
		used += int64(len(file.data))
	}
	return used
}

func (d *MemoryDriver) ReadFile(dir Directory, name string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.faultLocked(dir, name); err != nil {
		return nil, err
	}
	file, ok := d.files[memoryKey{dir, name}]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", dir, name, fs.ErrNotExist)
	}
	return bytes.Clone(file.data), nil
}

func (d *MemoryDriver) WriteFile(dir Directory, name string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.faultLocked(dir, name); err != nil {
		return err
	}
	key := memoryKey{dir, name}
	if d.capacity >= 0 {
		used := d.usedLocked()
		if existing, ok := d.files[key]; ok {
			used -= int64(len(existing.data))
		}
		if used+int64(len(data)) > d.capacity {
			return ErrNoSpace
		}
	}
	d.files[key] = &memoryFile{data: bytes.Clone(data), modTime: d.now()}
	return nil
}

func (d *MemoryDriver) Open(dir Directory, name string) (io.ReadCloser, error) {
	data, err := d.ReadFile(dir, name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (d *MemoryDriver) Append(dir Directory, name string, truncate bool) (io.WriteCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.faultLocked(dir, name); err != nil {
		return nil, err
	}
	key := memoryKey{dir, name}
	file, ok := d.files[key]
	if !ok {
		file = &memoryFile{modTime: d.now()}
		d.files[key] = file
	}
	if truncate {
		file.data = nil
	}
	return &memoryAppender{driver: d, key: key}, nil
}

type memoryAppender struct {
	driver *MemoryDriver
	key    memoryKey
	closed bool
}

func (w *memoryAppender) Write(p []byte) (int, error) {
	d := w.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if w.closed {
		return 0, fs.ErrClosed
	}
	if err := d.faultLocked(w.key.dir, w.key.name); err != nil {
		return 0, err
	}
	if d.capacity >= 0 && d.usedLocked()+int64(len(p)) > d.capacity {
		return 0, ErrNoSpace
	}
	file, ok := d.files[w.key]
	if !ok {
		// Removed while open; the next write recreates it.
		file = &memoryFile{}
		d.files[w.key] = file
	}
	file.data = append(file.data, p...)
	file.modTime = d.now()
	return len(p), nil
}

func (w *memoryAppender) Close() error {
	w.driver.mu.Lock()
	w.closed = true
	w.driver.mu.Unlock()
	return nil
}

func (d *MemoryDriver) Remove(dir Directory, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.faultLocked(dir, name); err != nil {
		return err
	}
	delete(d.files, memoryKey{dir, name})
	return nil
}

func (d *MemoryDriver) Stat(dir Directory, name string) (FileInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.faultLocked(dir, name); err != nil {
		return FileInfo{}, err
	}
	file, ok := d.files[memoryKey{dir, name}]
	if !ok {
		return FileInfo{}, nil
	}
	return FileInfo{Exists: true, Size: int64(len(file.data)), ModTime: file.modTime}, nil
}

func (d *MemoryDriver) List(dir Directory) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.faults[memoryKey{dir, ""}]; ok {
		return nil, err
	}
	var names []string
	for key := range d.files {
		if key.dir == dir {
			names = append(names, key.name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *MemoryDriver) FreeSpace(dir Directory) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capacity < 0 {
		return 1 << 62, nil
	}
	return d.capacity - d.usedLocked(), nil
}
