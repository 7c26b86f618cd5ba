// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package assetbundles composes bundle downloads and loads into
// asynchronous operations with a uniform completion contract.
//
// A bundle is a loadable container of assets or scenes. The
// [BundleCatalog] declares every bundle, its direct dependencies, which
// bundles ship with the application (local) and which must be fetched
// through the downloadables engine (remote), and named groups of
// bundles. The [Manager] keeps one [BundleHandle] per bundle and owns
// the [downloadables.Engine] that fetches remote ones.
//
// Every asynchronous call returns a [Request] and resolves exactly once
// through a [DoneFunc] carrying a [Result] and optional data. Work is
// carried by an [Op]: a shared driver that runs the start step of an
// operation kind once per Perform and its poll step on every Update
// until the kind calls NotifySuccess or NotifyError. Composed
// operations start child operations whose callbacks resolve a one-shot
// future the parent polls, and forward a failed child's Result verbatim.
//
// Like the engine, the manager is single-threaded: the owner calls
// [Manager.Update] once per tick, which advances the bundle loader, then
// the engine, then every live operation. Native loads are started
// through a [BundleLoader] and observed by polling.
package assetbundles
