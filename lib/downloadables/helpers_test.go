// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/downloadables/lib/clock"
	"github.com/bureau-foundation/downloadables/lib/disk"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	clock   *clock.FakeClock
	driver  *disk.MemoryDriver
	disk    *disk.Disk
	tracker *recordingTracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fakeClock := clock.Fake(epoch)
	driver := disk.NewMemory()
	driver.SetNow(fakeClock.Now)
	return &testEnv{
		clock:   fakeClock,
		driver:  driver,
		disk:    disk.New(disk.Config{Driver: driver, Clock: fakeClock}),
		tracker: &recordingTracker{},
	}
}

func (e *testEnv) statusConfig() StatusConfig {
	return StatusConfig{
		Disk:     e.disk,
		Clock:    e.clock,
		Tracker:  e.tracker,
		Settings: DefaultSettings(),
	}
}

func (e *testEnv) newStatus(id string, entry CatalogEntry) *CatalogEntryStatus {
	return NewCatalogEntryStatus(e.statusConfig(), id, entry)
}

func (e *testEnv) putManifest(t *testing.T, id string, document manifestDocument) {
	t.Helper()
	data, err := json.Marshal(document)
	if err != nil {
		t.Fatal(err)
	}
	e.driver.Put(disk.Manifests, id, data)
}

func (e *testEnv) readManifest(t *testing.T, id string) (manifestDocument, bool) {
	t.Helper()
	data, ok := e.driver.Get(disk.Manifests, id)
	if !ok {
		return manifestDocument{}, false
	}
	var document manifestDocument
	if err := json.Unmarshal(data, &document); err != nil {
		t.Fatalf("manifest %s: %v", id, err)
	}
	return document, true
}

// stepStates calls Update n times and returns the state after each.
func stepStates(status *CatalogEntryStatus, n int) []State {
	states := make([]State, 0, n)
	for range n {
		status.Update()
		states = append(states, status.State())
	}
	return states
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type recordingTracker struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingTracker) Track(event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingTracker) kinds(id string) []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []EventKind
	for _, event := range r.events {
		if event.ID == id {
			kinds = append(kinds, event.Kind)
		}
	}
	return kinds
}

// fakeNetwork completes each transfer on its first Poll by writing the
// configured content, unless hold is set.
type fakeNetwork struct {
	disk         *disk.Disk
	reachability Reachability
	content      map[string][]byte
	failures     map[string]error
	hold         bool
	started      []string
	transfers    []*fakeTransfer
}

func newFakeNetwork(d *disk.Disk) *fakeNetwork {
	return &fakeNetwork{
		disk:         d,
		reachability: ReachabilityWifi,
		content:      make(map[string][]byte),
		failures:     make(map[string]error),
	}
}

func (n *fakeNetwork) Reachability() Reachability { return n.reachability }

func (n *fakeNetwork) StartDownload(ctx context.Context, req DownloadRequest) Transfer {
	n.started = append(n.started, req.ID)
	transfer := &fakeTransfer{network: n, id: req.ID}
	n.transfers = append(n.transfers, transfer)
	return transfer
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
