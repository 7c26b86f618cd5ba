// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

// loadAssetBundleOp wraps one native bundle load. It is run by the
// manager's loader, never handed to callers.
type loadAssetBundleOp struct {
	manager    *Manager
	handle     *BundleHandle
	request    BundleRequest
	generation uint64
}

func (k *loadAssetBundleOp) name() string { return "LoadAssetBundleOp" }

func (k *loadAssetBundleOp) perform(op *Op) {
	k.generation = k.handle.onLoadStarted()
	if k.handle.IsRemote() && !k.manager.engine.IsIDAvailable(k.handle.ID()) {
		k.handle.onLoadFailed(ErrorCouldntBeLoaded)
		op.finish(ErrorCouldntBeLoaded, k.handle.ID())
		return
	}
	k.request = k.manager.loader.LoadBundle(k.handle.ID(), k.handle.IsRemote())
	if k.request == nil {
		k.handle.onLoadFailed(ErrorCouldntBeLoaded)
		op.finish(ErrorCouldntBeLoaded, k.handle.ID())
		return
	}
	k.request.SetAllowSceneActivation(op.AllowSceneActivation())
}

func (k *loadAssetBundleOp) update(op *Op) {
	if !k.request.Done() {
		return
	}
	bundle := k.request.Bundle()
	if k.handle.generation != k.generation {
		// Unloaded while loading.
		if bundle != nil {
			bundle.Unload()
		}
		op.finish(Canceled, k.handle.ID())
		return
	}
	if bundle == nil {
		k.handle.onLoadFailed(ErrorCouldntBeLoaded)
		op.finish(ErrorCouldntBeLoaded, k.handle.ID())
		return
	}
	k.handle.onLoaded(bundle)
	op.NotifySuccess(bundle)
}

func (k *loadAssetBundleOp) progress() float64 {
	if k.request == nil {
		return 0
	}
	return k.request.Progress()
}

func (k *loadAssetBundleOp) setAllowSceneActivation(allow bool) {
	if k.request != nil {
		k.request.SetAllowSceneActivation(allow)
	}
}

// stop drops the native request. A bundle it still produces is never
// seen.
func (k *loadAssetBundleOp) stop() {
	if k.handle.generation == k.generation && k.handle.state == LoadStateLoading {
		k.handle.unload()
	}
}

// loadAssetBundleListOp waits for a list of bundles the loader has been
// asked for. The first id found in error, in list order, resolves the
// op with that handle's error and the id as data.
type loadAssetBundleListOp struct {
	manager *Manager
	ids     []string
}

func (k *loadAssetBundleListOp) name() string { return "LoadAssetBundleListOp" }

func (k *loadAssetBundleListOp) perform(op *Op) {
	for _, id := range k.ids {
		k.manager.requestLoad(id)
	}
}

func (k *loadAssetBundleListOp) update(op *Op) {
	allLoaded := true
	for _, id := range k.ids {
		handle := k.manager.handles[id]
		if handle == nil {
			op.finish(ErrorHandleNotFound, id)
			return
		}
		switch handle.State() {
		case LoadStateLoaded:
		case LoadStateError:
			op.finish(handle.LoadError(), id)
			return
		case LoadStateNone:
			// Unloaded by someone else while this op waited.
			op.finish(ErrorNotLoaded, id)
			return
		default:
			allLoaded = false
		}
	}
	if allLoaded {
		op.NotifySuccess(nil)
	}
}

func (k *loadAssetBundleListOp) progress() float64 {
	if len(k.ids) == 0 {
		return 1
	}
	var total float64
	for _, id := range k.ids {
		total += k.manager.loaderProgress(id)
	}
	return total / float64(len(k.ids))
}

func (k *loadAssetBundleListOp) setAllowSceneActivation(bool) {}

func (k *loadAssetBundleListOp) stop() {}
