// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zipbundle

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"sync"

	"github.com/bureau-foundation/downloadables/lib/assetbundles"
	"github.com/bureau-foundation/downloadables/lib/disk"
)

// LocalSuffix is appended to a bundle id to name its archive in the
// local file system.
const LocalSuffix = ".zip"

// Config holds the parameters for New.
type Config struct {
	// Disk serves remote bundles. Loading a remote bundle without one
	// fails.
	Disk *disk.Disk

	// Local serves bundles shipped with the application. Loading a
	// local bundle without one fails.
	Local fs.FS

	// Logger receives load failures. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Loader is an assetbundles.BundleLoader over zip archives.
type Loader struct {
	disk   *disk.Disk
	local  fs.FS
	logger *slog.Logger

	mu     sync.Mutex
	open   map[string]*Bundle
	scenes []string
}

// New returns a Loader.
func New(cfg Config) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		disk:   cfg.Disk,
		local:  cfg.Local,
		logger: logger,
		open:   make(map[string]*Bundle),
	}
}

// LoadBundle reads and indexes the archive of id in the background.
func (l *Loader) LoadBundle(id string, remote bool) assetbundles.BundleRequest {
	request := &bundleRequest{}
	go func() {
		bundle, err := l.load(id, remote)
		if err != nil {
			l.logger.Warn("bundle load failed", "bundle", id, "remote", remote, "error", err)
		}
		request.resolve(bundle, err)
	}()
	return request
}

func (l *Loader) load(id string, remote bool) (*Bundle, error) {
	data, err := l.read(id, remote)
	if err != nil {
		return nil, err
	}
	bundle, err := Open(id, data)
	if err != nil {
		return nil, err
	}
	bundle.loader = l
	l.mu.Lock()
	l.open[id] = bundle
	l.mu.Unlock()
	return bundle, nil
}

func (l *Loader) read(id string, remote bool) ([]byte, error) {
	if remote {
		if l.disk == nil {
			return nil, errors.New("zipbundle: no disk for remote bundles")
		}
		return l.disk.FileReadAllBytes(disk.Downloads, id)
	}
	if l.local == nil {
		return nil, errors.New("zipbundle: no file system for local bundles")
	}
	data, err := fs.ReadFile(l.local, id+LocalSuffix)
	if err != nil {
		return nil, fmt.Errorf("zipbundle: reading local bundle %s: %w", id, err)
	}
	return data, nil
}

// OpenBundles returns the ids of the bundles loaded and not yet
// unloaded, sorted.
func (l *Loader) OpenBundles() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.open))
	for id := range l.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveScenes returns the activated scenes in activation order, each
// as "<bundle>/<scene>".
func (l *Loader) ActiveScenes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.scenes...)
}

func (l *Loader) activateScene(bundleID, name string, mode assetbundles.SceneMode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if mode == assetbundles.SceneSingle {
		l.scenes = l.scenes[:0]
	}
	l.scenes = append(l.scenes, bundleID+"/"+name)
}

func (l *Loader) closed(bundle *Bundle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open[bundle.id] == bundle {
		delete(l.open, bundle.id)
	}
	prefix := bundle.id + "/"
	kept := l.scenes[:0]
	for _, scene := range l.scenes {
		if len(scene) < len(prefix) || scene[:len(prefix)] != prefix {
			kept = append(kept, scene)
		}
	}
	l.scenes = kept
}

type bundleRequest struct {
	mu     sync.Mutex
	done   bool
	bundle *Bundle
	err    error
}

func (r *bundleRequest) resolve(bundle *Bundle, err error) {
	r.mu.Lock()
	r.done, r.bundle, r.err = true, bundle, err
	r.mu.Unlock()
}

func (r *bundleRequest) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *bundleRequest) Progress() float64 {
	if r.Done() {
		return 1
	}
	return 0
}

func (r *bundleRequest) SetAllowSceneActivation(bool) {}

func (r *bundleRequest) Bundle() assetbundles.Bundle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bundle == nil {
		return nil
	}
	return r.bundle
}

// Err is the load failure, if any.
func (r *bundleRequest) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
