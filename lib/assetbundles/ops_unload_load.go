// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

// UnloadAndLoadState is the step an unload-and-load operation is in.
type UnloadAndLoadState int

const (
	UnloadingPreviousAssetBundleList UnloadAndLoadState = iota
	LoadingNextAssetBundleList
	UnloadAndLoadDone
)

// diffBundleLists returns the ids of from missing in to and the ids of
// to missing in from, each in its list's order without duplicates.
func diffBundleLists(from, to []string) (unload, load []string) {
	inFrom := make(map[string]bool, len(from))
	for _, id := range from {
		inFrom[id] = true
	}
	inTo := make(map[string]bool, len(to))
	for _, id := range to {
		inTo[id] = true
	}
	for _, id := range dedupe(from) {
		if !inTo[id] {
			unload = append(unload, id)
		}
	}
	for _, id := range dedupe(to) {
		if !inFrom[id] {
			load = append(load, id)
		}
	}
	return unload, load
}

// unloadAndLoadOp moves from one set of loaded bundles to another,
// unloading only what the next set does not need and loading only what
// the previous set did not have.
type unloadAndLoadOp struct {
	manager *Manager
	kind    string
	unload  []string
	load    []string

	state   UnloadAndLoadState
	pending *future
	child   *Op
}

func newUnloadAndLoadOp(manager *Manager, kindName string, from, to []string) *unloadAndLoadOp {
	unload, load := diffBundleLists(from, to)
	return &unloadAndLoadOp{manager: manager, kind: kindName, unload: unload, load: load}
}

func (k *unloadAndLoadOp) name() string { return k.kind }

func (k *unloadAndLoadOp) perform(op *Op) {
	k.state = UnloadingPreviousAssetBundleList
	k.manager.UnloadAssetBundleList(k.unload)

	k.state = LoadingNextAssetBundleList
	k.pending = &future{}
	k.child = k.manager.loadAssetBundleList(k.load, k.pending.resolve)
	k.update(op)
}

func (k *unloadAndLoadOp) update(op *Op) {
	if k.state != LoadingNextAssetBundleList || !k.pending.done {
		return
	}
	k.state = UnloadAndLoadDone
	op.finish(k.pending.result, k.pending.data)
}

func (k *unloadAndLoadOp) progress() float64 {
	switch {
	case k.state == UnloadAndLoadDone:
		return 1
	case k.child != nil:
		return k.child.Progress()
	}
	return 0
}

func (k *unloadAndLoadOp) setAllowSceneActivation(bool) {}

func (k *unloadAndLoadOp) stop() {
	if k.child != nil {
		k.child.Cancel()
	}
}
