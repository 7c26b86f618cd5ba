// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

// SceneMode says whether a scene replaces the current ones or is added
// to them.
type SceneMode int

const (
	SceneSingle SceneMode = iota
	SceneAdditive
)

func (m SceneMode) String() string {
	if m == SceneAdditive {
		return "additive"
	}
	return "single"
}

// NativeRequest is an in-flight load owned by the host. It is polled
// from Update and must not block.
type NativeRequest interface {
	Done() bool

	// Progress is in [0, 1].
	Progress() float64

	// SetAllowSceneActivation holds a scene at the end of its load
	// while false. Requests that load no scene ignore it.
	SetAllowSceneActivation(allow bool)
}

// BundleRequest loads one bundle.
type BundleRequest interface {
	NativeRequest

	// Bundle is nil when the load failed. Valid once Done.
	Bundle() Bundle
}

// AssetRequest loads one asset from a bundle.
type AssetRequest interface {
	NativeRequest

	// Asset reports false when the bundle has no such asset. Valid once
	// Done.
	Asset() (any, bool)
}

// SceneRequest loads one scene from a bundle.
type SceneRequest interface {
	NativeRequest

	// Err is nil when the scene was loaded and activated. Valid once
	// Done.
	Err() error
}

// Bundle is a loaded bundle.
type Bundle interface {
	ID() string

	// IsSceneBundle reports whether the bundle holds scenes rather than
	// assets.
	IsSceneBundle() bool

	LoadAsset(name string) AssetRequest
	LoadScene(name string, mode SceneMode) SceneRequest

	// Unload releases the bundle. It is called at most once.
	Unload()
}

// BundleLoader starts native bundle loads. Remote bundles are read from
// the downloads the engine verified; local ones from wherever the host
// ships them.
type BundleLoader interface {
	LoadBundle(id string, remote bool) BundleRequest
}
