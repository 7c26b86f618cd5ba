// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zipbundle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/downloadables/lib/assetbundles"
)

// ScenePrefix is the archive directory holding scenes.
const ScenePrefix = "scenes/"

// ErrUnloaded is returned by loads from a bundle that was unloaded.
var ErrUnloaded = errors.New("zipbundle: bundle unloaded")

// Bundle is an indexed bundle archive held in memory.
type Bundle struct {
	id     string
	loader *Loader

	mu     sync.Mutex
	assets map[string]*zip.File
	scenes map[string]*zip.File
}

// Open indexes the archive in data as bundle id.
func Open(id string, data []byte) (*Bundle, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zipbundle: opening bundle %s: %w", id, err)
	}
	reader.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	bundle := &Bundle{
		id:     id,
		assets: make(map[string]*zip.File),
		scenes: make(map[string]*zip.File),
	}
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if name, ok := strings.CutPrefix(file.Name, ScenePrefix); ok {
			bundle.scenes[name] = file
		} else {
			bundle.assets[file.Name] = file
		}
	}
	return bundle, nil
}

func (b *Bundle) ID() string { return b.id }

func (b *Bundle) IsSceneBundle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.scenes) > 0
}

// AssetNames returns the names of the bundle's assets, sorted.
func (b *Bundle) AssetNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.assets))
	for name := range b.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadAsset decompresses the named asset in the background. The asset
// value is its content as a []byte.
func (b *Bundle) LoadAsset(name string) assetbundles.AssetRequest {
	b.mu.Lock()
	file, ok := b.assets[name]
	b.mu.Unlock()

	request := &assetRequest{}
	if !ok {
		request.resolve(nil, false)
		return request
	}
	go func() {
		data, err := readFile(file)
		request.resolve(data, err == nil)
	}()
	return request
}

// LoadScene decompresses the named scene in the background. The scene
// is activated the first time its request reports Done, which needs
// activation to be allowed.
func (b *Bundle) LoadScene(name string, mode assetbundles.SceneMode) assetbundles.SceneRequest {
	b.mu.Lock()
	file, ok := b.scenes[name]
	unloaded := b.assets == nil
	b.mu.Unlock()

	request := &sceneRequest{bundle: b, name: name, mode: mode, allow: true}
	switch {
	case unloaded:
		request.resolve(ErrUnloaded)
	case !ok:
		request.resolve(fmt.Errorf("zipbundle: bundle %s has no scene %q", b.id, name))
	default:
		go func() {
			_, err := readFile(file)
			request.resolve(err)
		}()
	}
	return request
}

// Unload drops the archive index. Loads already running finish.
func (b *Bundle) Unload() {
	b.mu.Lock()
	b.assets, b.scenes = nil, nil
	b.mu.Unlock()
	if b.loader != nil {
		b.loader.closed(b)
	}
}

func readFile(file *zip.File) ([]byte, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

type assetRequest struct {
	mu    sync.Mutex
	done  bool
	value []byte
	ok    bool
}

func (r *assetRequest) resolve(value []byte, ok bool) {
	r.mu.Lock()
	r.done, r.value, r.ok = true, value, ok
	r.mu.Unlock()
}

func (r *assetRequest) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *assetRequest) Progress() float64 {
	if r.Done() {
		return 1
	}
	return 0
}

func (r *assetRequest) SetAllowSceneActivation(bool) {}

func (r *assetRequest) Asset() (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ok {
		return nil, false
	}
	return r.value, true
}

// sceneActivationProgress is reported by a loaded scene held before
// activation.
const sceneActivationProgress = 0.9

type sceneRequest struct {
	bundle *Bundle
	name   string
	mode   assetbundles.SceneMode

	mu        sync.Mutex
	loaded    bool
	allow     bool
	activated bool
	err       error
}

func (r *sceneRequest) resolve(err error) {
	r.mu.Lock()
	r.loaded, r.err = true, err
	r.mu.Unlock()
}

func (r *sceneRequest) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded || !r.allow {
		return false
	}
	if !r.activated && r.err == nil && r.bundle.loader != nil {
		r.bundle.loader.activateScene(r.bundle.id, r.name, r.mode)
	}
	r.activated = true
	return true
}

func (r *sceneRequest) Progress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.activated:
		return 1
	case r.loaded:
		return sceneActivationProgress
	default:
		return 0
	}
}

func (r *sceneRequest) SetAllowSceneActivation(allow bool) {
	r.mu.Lock()
	r.allow = allow
	r.mu.Unlock()
}

func (r *sceneRequest) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
