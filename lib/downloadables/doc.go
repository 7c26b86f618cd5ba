// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package downloadables is the content cache and verification engine.
//
// A server publishes a [Catalog]: content ids mapped to an expected
// size and CRC-32. The [Engine] keeps one [CatalogEntryStatus] per id
// and drives it, once per Update, through
//
//	None → ReadingManifest → ReadingDataInfo → InQueueForDownload →
//	Downloading → CalculatingCRC → Available
//
// reconciling three sources of truth: the live catalog, the persisted
// [CatalogEntryManifest] (what was last verified), and the bytes on disk.
// A changed catalog entry invalidates the blob, an oversized blob is
// deleted, and nothing becomes Available until its CRC-32 matches.
//
// The engine is single-threaded. All state transitions happen inside
// Update on the caller's goroutine. Transfers started through a
// [Network] run on their own goroutines and are observed by polling
// [Transfer.Poll] on the next Update.
//
// Errors are cooled down rather than retried hot: after any failure an
// entry does nothing until Settings.ErrorCooldown has elapsed. Each
// entry has a retry budget (Settings.MaxDownloadErrors and
// Settings.MaxCRCMismatches); once it is spent, CanAutomaticDownload
// turns false and callers are expected to surface the failure.
//
// Ids are scheduled for download in this order: ids with a running
// request first (oldest request first), then, when automatic download
// is enabled, the members of each [CatalogGroup] by ascending priority.
// Groups at [DefaultPriority] are never downloaded automatically. There
// is no fairness guarantee between groups of equal priority beyond
// their id order.
//
// Network use is gated by group permissions. Over a carrier network an
// id needs a group whose over-carrier permission is granted; over wifi
// it needs the requested flag when Settings.RequestPermissionOverWifi is
// set. Linked groups share one [Permission] record.
package downloadables
