// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package disk is the storage layer under the content cache.
//
// Everything the cache persists lives in one of four directories
// ([Manifests], [Downloads], [Groups], [State]), addressed by a plain
// file name with no path separators. A [Driver] implements the raw
// file operations; [OS] stores files on the local filesystem with
// atomic replace-on-write, and [Memory] keeps them in a map for tests
// and supports fault injection.
//
// [Disk] wraps a Driver and is what the rest of the module uses. It
// classifies every failure into a *[Error] of kind [KindIO],
// [KindUnauthorizedAccess], or [KindOutOfSpace], adds JSON helpers for
// manifests and group files, and reports recurring permission or space
// problems through an optional issue callback no more often than once
// per [Config].IssueNotifyPeriod.
//
// A missing file is not an error for [Disk.FileGetInfo] and
// [Disk.FileExists]. The read operations return an error for which
// [IsNotExist] reports true.
package disk
