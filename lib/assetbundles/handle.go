// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

// LoadState is where a bundle is in its load lifecycle.
type LoadState int

const (
	LoadStateNone LoadState = iota

	// LoadStatePending means the bundle is queued in the loader.
	LoadStatePending

	LoadStateLoading
	LoadStateLoaded
	LoadStateError
)

func (s LoadState) String() string {
	switch s {
	case LoadStatePending:
		return "pending"
	case LoadStateLoading:
		return "loading"
	case LoadStateLoaded:
		return "loaded"
	case LoadStateError:
		return "error"
	default:
		return "none"
	}
}

// BundleHandle tracks one catalog bundle.
type BundleHandle struct {
	id           string
	dependencies []string
	remote       bool

	state     LoadState
	bundle    Bundle
	loadError Result

	// generation changes on every unload so a load that finishes after
	// its handle was unloaded can tell it is stale.
	generation uint64
}

func newBundleHandle(id string, dependencies []string, remote bool) *BundleHandle {
	return &BundleHandle{id: id, dependencies: dependencies, remote: remote}
}

// ID returns the bundle id.
func (h *BundleHandle) ID() string { return h.id }

// DependenciesIncludingSelf returns the bundle id followed by its
// transitive dependencies.
func (h *BundleHandle) DependenciesIncludingSelf() []string {
	return append([]string(nil), h.dependencies...)
}

// IsRemote reports whether the bundle must be downloaded.
func (h *BundleHandle) IsRemote() bool { return h.remote }

// State returns the load state.
func (h *BundleHandle) State() LoadState { return h.state }

// IsLoaded reports whether the bundle is loaded.
func (h *BundleHandle) IsLoaded() bool { return h.state == LoadStateLoaded }

// IsLoading reports whether the bundle is queued or loading.
func (h *BundleHandle) IsLoading() bool {
	return h.state == LoadStatePending || h.state == LoadStateLoading
}

// Bundle returns the native bundle while loaded.
func (h *BundleHandle) Bundle() Bundle { return h.bundle }

// LoadError is the Result of the last failed load.
func (h *BundleHandle) LoadError() Result { return h.loadError }

// needsToRequestLoad reports whether the loader should be asked for
// this bundle. Failed loads may be requested again.
func (h *BundleHandle) needsToRequestLoad() bool {
	return h.state == LoadStateNone || h.state == LoadStateError
}

func (h *BundleHandle) onPending() {
	h.state = LoadStatePending
	h.loadError = Success
}

func (h *BundleHandle) onLoadStarted() uint64 {
	h.state = LoadStateLoading
	return h.generation
}

func (h *BundleHandle) onLoaded(bundle Bundle) {
	h.state = LoadStateLoaded
	h.bundle = bundle
}

func (h *BundleHandle) onLoadFailed(result Result) {
	h.state = LoadStateError
	h.loadError = result
}

// unload releases a loaded bundle or abandons a queued or running load.
func (h *BundleHandle) unload() {
	if h.bundle != nil {
		h.bundle.Unload()
	}
	h.bundle = nil
	h.state = LoadStateNone
	h.loadError = Success
	h.generation++
}
