// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package disk

import (
	"encoding/json"
	"hash/crc32"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/downloadables/lib/clock"
)

// DefaultIssueNotifyPeriod is the minimum spacing between two issue
// callbacks of the same kind.
const DefaultIssueNotifyPeriod = 30 * time.Second

// Config holds the parameters for New. Driver is required.
type Config struct {
	Driver Driver

	// Clock paces issue notifications. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives issue reports. If nil, a no-op logger is used.
	Logger *slog.Logger

	// IssueNotifyPeriod defaults to DefaultIssueNotifyPeriod.
	IssueNotifyPeriod time.Duration

	// OnIssue is called when an operation fails with
	// KindUnauthorizedAccess or KindOutOfSpace, at most once per
	// IssueNotifyPeriod per kind. It may be called from a transfer
	// goroutine.
	OnIssue func(kind Kind)
}

// Disk is the classified, JSON-aware view of a Driver.
type Disk struct {
	driver       Driver
	clock        clock.Clock
	logger       *slog.Logger
	notifyPeriod time.Duration
	onIssue      func(Kind)

	mu        sync.Mutex
	lastIssue map[Kind]time.Time
}

// New returns a Disk over cfg.Driver.
func New(cfg Config) *Disk {
	if cfg.Driver == nil {
		panic("disk: Driver is required")
	}
	d := &Disk{
		driver:       cfg.Driver,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		notifyPeriod: cfg.IssueNotifyPeriod,
		onIssue:      cfg.OnIssue,
		lastIssue:    make(map[Kind]time.Time),
	}
	if d.clock == nil {
		d.clock = clock.Real()
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	if d.notifyPeriod <= 0 {
		d.notifyPeriod = DefaultIssueNotifyPeriod
	}
	return d
}

// Driver returns the underlying driver.
func (d *Disk) Driver() Driver { return d.driver }

func (d *Disk) wrap(op string, dir Directory, name string, err error) error {
	if err == nil {
		return nil
	}
	kind := classify(err)
	if kind != KindIO {
		d.notifyIssue(kind, op, dir, name)
	}
	return &Error{Op: op, Dir: dir, Name: name, Kind: kind, Err: err}
}

func (d *Disk) notifyIssue(kind Kind, op string, dir Directory, name string) {
	now := d.clock.Now()
	d.mu.Lock()
	last, seen := d.lastIssue[kind]
	due := !seen || now.Sub(last) >= d.notifyPeriod
	if due {
		d.lastIssue[kind] = now
	}
	d.mu.Unlock()
	if !due {
		return
	}
	d.logger.Warn("disk issue",
		"kind", kind.String(),
		"op", op,
		"directory", dir.String(),
		"name", name,
	)
	if d.onIssue != nil {
		d.onIssue(kind)
	}
}

// FileExists reports whether the file exists.
func (d *Disk) FileExists(dir Directory, name string) (bool, error) {
	info, err := d.driver.Stat(dir, name)
	if err != nil {
		return false, d.wrap("stat", dir, name, err)
	}
	return info.Exists, nil
}

// FileGetInfo stats the file. A missing file yields Exists false and no
// error.
func (d *Disk) FileGetInfo(dir Directory, name string) (FileInfo, error) {
	info, err := d.driver.Stat(dir, name)
	return info, d.wrap("stat", dir, name, err)
}

// FileReadAllBytes reads the whole file.
func (d *Disk) FileReadAllBytes(dir Directory, name string) ([]byte, error) {
	data, err := d.driver.ReadFile(dir, name)
	return data, d.wrap("read", dir, name, err)
}

// FileWriteAllBytes atomically replaces the file's content.
func (d *Disk) FileWriteAllBytes(dir Directory, name string, data []byte) error {
	return d.wrap("write", dir, name, d.driver.WriteFile(dir, name, data))
}

// FileReadJSON reads the file and decodes it into v. A file that exists
// but does not parse is reported as an IO error wrapping the JSON error.
func (d *Disk) FileReadJSON(dir Directory, name string, v any) error {
	data, err := d.FileReadAllBytes(dir, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Op: "decode", Dir: dir, Name: name, Kind: KindIO, Err: err}
	}
	return nil
}

// FileWriteJSON encodes v and atomically replaces the file.
func (d *Disk) FileWriteJSON(dir Directory, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &Error{Op: "encode", Dir: dir, Name: name, Kind: KindIO, Err: err}
	}
	return d.FileWriteAllBytes(dir, name, data)
}

// FileDelete removes the file. Removing a missing file succeeds.
func (d *Disk) FileDelete(dir Directory, name string) error {
	return d.wrap("delete", dir, name, d.driver.Remove(dir, name))
}

// FileOpen opens the file for streaming reads.
func (d *Disk) FileOpen(dir Directory, name string) (io.ReadCloser, error) {
	reader, err := d.driver.Open(dir, name)
	return reader, d.wrap("open", dir, name, err)
}

// FileAppend opens the file for appending. Write errors from the
// returned writer are classified like every other operation.
func (d *Disk) FileAppend(dir Directory, name string, truncate bool) (io.WriteCloser, error) {
	writer, err := d.driver.Append(dir, name, truncate)
	if err != nil {
		return nil, d.wrap("append", dir, name, err)
	}
	return &classifyingWriter{disk: d, dir: dir, name: name, inner: writer}, nil
}

// FileCRC32 streams the file through an IEEE CRC-32 and returns the
// checksum with the number of bytes read.
func (d *Disk) FileCRC32(dir Directory, name string) (uint32, int64, error) {
	reader, err := d.FileOpen(dir, name)
	if err != nil {
		return 0, 0, err
	}
	defer reader.Close()
	hash := crc32.NewIEEE()
	n, err := io.Copy(hash, reader)
	if err != nil {
		return 0, n, d.wrap("read", dir, name, err)
	}
	return hash.Sum32(), n, nil
}

// DirectoryGetFiles lists the file names in dir.
func (d *Disk) DirectoryGetFiles(dir Directory) ([]string, error) {
	names, err := d.driver.List(dir)
	return names, d.wrap("list", dir, "", err)
}

// FreeSpace returns the bytes available in dir.
func (d *Disk) FreeSpace(dir Directory) (int64, error) {
	free, err := d.driver.FreeSpace(dir)
	return free, d.wrap("statfs", dir, "", err)
}

type classifyingWriter struct {
	disk  *Disk
	dir   Directory
	name  string
	inner io.WriteCloser
}

func (w *classifyingWriter) Write(p []byte) (int, error) {
	n, err := w.inner.Write(p)
	return n, w.disk.wrap("write", w.dir, w.name, err)
}

func (w *classifyingWriter) Close() error {
	return w.disk.wrap("close", w.dir, w.name, w.inner.Close())
}

