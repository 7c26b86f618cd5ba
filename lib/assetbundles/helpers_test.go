// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/downloadables/lib/clock"
	"github.com/bureau-foundation/downloadables/lib/disk"
	"github.com/bureau-foundation/downloadables/lib/downloadables"
	"github.com/bureau-foundation/downloadables/lib/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const worldCatalog = `{
	// ui and its fonts ship with the application
	"local": ["ui"],
	"dependencies": {
		"ui": ["fonts"],
		"fonts": [],
		"level_1": ["textures"],
		"textures": ["shaders"],
		"shaders": [],
		"scene_1": ["level_1"],
	},
	"groups": {
		"world_1": {"bundles": ["scene_1"], "priority": 1},
		"menu": {"bundles": ["ui"]},
	},
}`

// worldEntries are the downloadables of worldCatalog, with ui listed by
// mistake.
var worldEntries = map[string]downloadables.CatalogEntry{
	"ui":       {CRC: 999, Size: 10},
	"level_1":  {CRC: 111, Size: 40},
	"textures": {CRC: 222, Size: 50},
	"shaders":  {CRC: 333, Size: 60},
	"scene_1":  {CRC: 444, Size: 30},
}

type testEnv struct {
	clock   *clock.FakeClock
	driver  *disk.MemoryDriver
	disk    *disk.Disk
	network *fakeNetwork
	loader  *fakeLoader
	engine  *downloadables.Engine
	manager *Manager
}

// newTestEnv initializes a manager over catalogDocument. Every entry
// gets matching content on the fake network and every bundle a plain
// asset bundle in the fake loader.
func newTestEnv(t *testing.T, catalogDocument string, entries map[string]downloadables.CatalogEntry) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:  clock.Fake(epoch),
		driver: disk.NewMemory(),
		loader: newFakeLoader(),
	}
	env.disk = disk.New(disk.Config{Driver: env.driver, Clock: env.clock})
	env.network = newFakeNetwork(env.disk)
	for id, entry := range entries {
		env.network.content[id] = testutil.Payload(int(entry.Size), entry.CRC)
	}

	settings := downloadables.DefaultSettings()
	settings.AutomaticDownload = false
	env.engine = downloadables.New(downloadables.Config{
		Disk:     env.disk,
		Network:  env.network,
		Clock:    env.clock,
		Settings: settings,
	})
	env.manager = New(Config{Engine: env.engine, Loader: env.loader})

	catalog, err := ParseBundleCatalog([]byte(catalogDocument), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range catalog.IDs() {
		env.loader.bundles[id] = &fakeBundle{id: id, assets: map[string]any{}}
	}
	if err := env.manager.Init(catalog, downloadables.NewCatalog(entries)); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(env.manager.Shutdown)
	return env
}

func (env *testEnv) tick() {
	env.clock.Advance(time.Second)
	env.manager.Update()
}

func (env *testEnv) ticks(n int) {
	for range n {
		env.tick()
	}
}

func (env *testEnv) runUntilDone(t *testing.T, request *Request) {
	t.Helper()
	testutil.RequireEventually(t, 200, env.tick, request.IsDone, "request %s", request.ID())
}

// outcome records DoneFunc calls.
type outcome struct {
	calls  int
	result Result
	data   any
}

func (o *outcome) done(result Result, data any) {
	o.calls++
	o.result = result
	o.data = data
}

func requireOutcome(t *testing.T, got *outcome, want Result, wantData any) {
	t.Helper()
	if got.calls != 1 {
		t.Fatalf("callback called %d times, want 1", got.calls)
	}
	if got.result != want {
		t.Errorf("result = %v, want %v", got.result, want)
	}
	if got.data != wantData {
		t.Errorf("data = %v, want %v", got.data, wantData)
	}
}

type fakeNetwork struct {
	disk      *disk.Disk
	content   map[string][]byte
	failures  map[string]error
	hold      bool
	started   []string
	transfers []*fakeTransfer
}

func newFakeNetwork(d *disk.Disk) *fakeNetwork {
	return &fakeNetwork{
		disk:     d,
		content:  make(map[string][]byte),
		failures: make(map[string]error),
	}
}

func (n *fakeNetwork) Reachability() downloadables.Reachability {
	return downloadables.ReachabilityWifi
}

func (n *fakeNetwork) StartDownload(ctx context.Context, req downloadables.DownloadRequest) downloadables.Transfer {
	n.started = append(n.started, req.ID)
	transfer := &fakeTransfer{network: n, id: req.ID}
	n.transfers = append(n.transfers, transfer)
	return transfer
}

func (n *fakeNetwork) startCount(id string) int {
	count := 0
	for _, started := range n.started {
		if started == id {
			count++
		}
	}
	return count
}

type fakeTransfer struct {
	network *fakeNetwork
	id      string
	done    bool
	aborted bool
	err     error
	bytes   int64
}

func (t *fakeTransfer) Poll() (bool, error) {
	if t.done {
		return true, t.err
	}
	if t.aborted {
		t.done, t.err = true, context.Canceled
		return true, t.err
	}
	if t.network.hold {
		return false, nil
	}
	t.done = true
	if err := t.network.failures[t.id]; err != nil {
		t.err = err
		return true, err
	}
	content := t.network.content[t.id]
	if err := t.network.disk.FileWriteAllBytes(disk.Downloads, t.id, content); err != nil {
		t.err = err
		return true, err
	}
	t.bytes = int64(len(content))
	return true, nil
}

func (t *fakeTransfer) BytesOnDisk() int64 { return t.bytes }

func (t *fakeTransfer) Abort() { t.aborted = true }

// fakeLoader completes a bundle load on its first poll unless the id is
// held. Ids missing from bundles fail to load.
type fakeLoader struct {
	bundles map[string]*fakeBundle
	hold    map[string]bool
	started []string
	remote  map[string]bool
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		bundles: make(map[string]*fakeBundle),
		hold:    make(map[string]bool),
		remote:  make(map[string]bool),
	}
}

func (l *fakeLoader) LoadBundle(id string, remote bool) BundleRequest {
	l.started = append(l.started, id)
	l.remote[id] = remote
	return &fakeBundleRequest{loader: l, id: id}
}

func (l *fakeLoader) startCount(id string) int {
	count := 0
	for _, started := range l.started {
		if started == id {
			count++
		}
	}
	return count
}

type fakeBundleRequest struct {
	loader *fakeLoader
	id     string
}

func (r *fakeBundleRequest) Done() bool { return !r.loader.hold[r.id] }

func (r *fakeBundleRequest) Progress() float64 {
	if r.Done() {
		return 1
	}
	return 0.5
}

func (r *fakeBundleRequest) SetAllowSceneActivation(bool) {}

func (r *fakeBundleRequest) Bundle() Bundle {
	if bundle, ok := r.loader.bundles[r.id]; ok {
		return bundle
	}
	return nil
}

type fakeBundle struct {
	id            string
	scenes        map[string]bool
	assets        map[string]any
	unloads       int
	sceneRequests []*fakeSceneRequest
}

func (b *fakeBundle) ID() string { return b.id }

func (b *fakeBundle) IsSceneBundle() bool { return b.scenes != nil }

func (b *fakeBundle) LoadAsset(name string) AssetRequest {
	value, ok := b.assets[name]
	return &fakeAssetRequest{value: value, ok: ok}
}

func (b *fakeBundle) LoadScene(name string, mode SceneMode) SceneRequest {
	request := &fakeSceneRequest{allow: true}
	if !b.scenes[name] {
		request.err = errors.New("no such scene: " + name)
	}
	b.sceneRequests = append(b.sceneRequests, request)
	return request
}

func (b *fakeBundle) Unload() { b.unloads++ }

type fakeAssetRequest struct {
	value any
	ok    bool
}

func (r *fakeAssetRequest) Done() bool                   { return true }
func (r *fakeAssetRequest) Progress() float64            { return 1 }
func (r *fakeAssetRequest) SetAllowSceneActivation(bool) {}
func (r *fakeAssetRequest) Asset() (any, bool)           { return r.value, r.ok }

// fakeSceneRequest finishes loading at once but is only done while
// activation is allowed.
type fakeSceneRequest struct {
	allow bool
	err   error
}

func (r *fakeSceneRequest) Done() bool { return r.allow }

func (r *fakeSceneRequest) Progress() float64 {
	if r.allow {
		return 1
	}
	return 0.9
}

func (r *fakeSceneRequest) SetAllowSceneActivation(allow bool) { r.allow = allow }
func (r *fakeSceneRequest) Err() error                         { return r.err }
