// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

type resourcePhase int

const (
	phaseDownloading resourcePhase = iota
	phaseLoadingBundles
	phaseLoadingResource
)

// resourceLoader is the last step of a full resource load: asset or
// scene.
type resourceLoader interface {
	kindName() string
	start(bundle Bundle, allowSceneActivation bool) (NativeRequest, Result)
	finish(request NativeRequest) (Result, any)
}

// loadResourceOp downloads a bundle and its dependencies, loads them,
// then loads one named resource from the bundle. A failed phase
// resolves the op with the child's result and data.
type loadResourceOp struct {
	manager  *Manager
	bundleID string
	resource resourceLoader

	phase   resourcePhase
	bundles []string
	pending *future
	child   *Op
	native  NativeRequest
	allow   bool
}

func (k *loadResourceOp) name() string { return k.resource.kindName() }

func (k *loadResourceOp) perform(op *Op) {
	k.allow = op.AllowSceneActivation()
	k.native = nil
	k.bundles = k.manager.DependenciesIncludingSelf(k.bundleID)
	k.phase = phaseDownloading
	k.pending = &future{}
	k.child = k.manager.downloadAssetBundleList(k.bundles, k.pending.resolve)
	k.advance(op)
}

// advance moves through the bundle phases for as long as children
// resolve synchronously.
func (k *loadResourceOp) advance(op *Op) {
	for k.pending.done {
		if k.pending.result != Success {
			op.finish(k.pending.result, k.pending.data)
			return
		}
		switch k.phase {
		case phaseDownloading:
			k.phase = phaseLoadingBundles
			k.pending = &future{}
			k.child = k.manager.loadAssetBundleList(k.bundles, k.pending.resolve)
		case phaseLoadingBundles:
			k.startResource(op)
			return
		}
	}
}

func (k *loadResourceOp) startResource(op *Op) {
	k.phase = phaseLoadingResource
	k.child = nil
	handle := k.manager.handles[k.bundleID]
	if handle == nil {
		op.finish(ErrorHandleNotFound, k.bundleID)
		return
	}
	if !handle.IsLoaded() {
		k.manager.logger.Error("assert: bundle is not loaded but its load succeeded", "bundle", k.bundleID)
		op.finish(ErrorNotLoaded, k.bundleID)
		return
	}
	bundle := handle.Bundle()
	if bundle == nil {
		k.manager.logAssertLoadedWithoutBundle(k.bundleID)
		op.finish(ErrorCouldntBeLoaded, k.bundleID)
		return
	}
	request, result := k.resource.start(bundle, k.allow)
	if result != Success {
		op.finish(result, k.bundleID)
		return
	}
	k.native = request
}

func (k *loadResourceOp) update(op *Op) {
	if k.phase != phaseLoadingResource {
		k.advance(op)
		return
	}
	if !k.native.Done() {
		return
	}
	result, data := k.resource.finish(k.native)
	op.finish(result, data)
}

func (k *loadResourceOp) progress() float64 {
	var current float64
	switch {
	case k.phase == phaseLoadingResource && k.native != nil:
		current = k.native.Progress()
	case k.child != nil:
		current = k.child.Progress()
	case k.pending != nil && k.pending.done:
		current = 1
	}
	return (float64(k.phase) + current) / 3
}

func (k *loadResourceOp) setAllowSceneActivation(allow bool) {
	k.allow = allow
	if k.native != nil {
		k.native.SetAllowSceneActivation(allow)
	}
}

func (k *loadResourceOp) stop() {
	if k.child != nil {
		k.child.Cancel()
	}
	// A native scene request cannot be aborted; holding it keeps a
	// canceled load from activating.
	if k.native != nil {
		k.native.SetAllowSceneActivation(false)
		k.native = nil
	}
}

type assetResource struct {
	name string
}

func (r assetResource) kindName() string { return "LoadAssetFromAssetBundlesFullOp" }

func (r assetResource) start(bundle Bundle, _ bool) (NativeRequest, Result) {
	request := bundle.LoadAsset(r.name)
	if request == nil {
		return nil, ErrorAssetNotFound
	}
	return request, Success
}

func (r assetResource) finish(request NativeRequest) (Result, any) {
	asset, ok := request.(AssetRequest).Asset()
	if !ok {
		return ErrorAssetNotFound, r.name
	}
	return Success, asset
}

type sceneResource struct {
	name string
	mode SceneMode
}

func (r sceneResource) kindName() string { return "LoadSceneFromAssetBundlesFullOp" }

func (r sceneResource) start(bundle Bundle, allowSceneActivation bool) (NativeRequest, Result) {
	if !bundle.IsSceneBundle() {
		return nil, ErrorNotASceneBundle
	}
	request := bundle.LoadScene(r.name, r.mode)
	if request == nil {
		return nil, ErrorInternal
	}
	request.SetAllowSceneActivation(allowSceneActivation)
	return request, Success
}

func (r sceneResource) finish(request NativeRequest) (Result, any) {
	if err := request.(SceneRequest).Err(); err != nil {
		return ErrorInternal, err
	}
	return Success, r.name
}
