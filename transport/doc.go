// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport fetches catalogs and blobs from the content server
// over HTTP.
//
// [Client] implements [downloadables.Network]. Each StartDownload runs
// one transfer on its own goroutine, streaming the response into the
// Downloads directory through [disk.Disk]. The engine observes the
// transfer only through Poll, so the goroutine never touches engine
// state.
//
// Blob URLs are formed as
//
//	<URLBase><crc32>/<id>
//
// so a changed entry is always fetched from a new URL and CDN caches
// never serve stale bytes. When a partial blob is already on disk the
// request carries a Range header and a 206 response is appended to it.
// A 200 response replaces whatever was there.
//
// [Client.FetchCatalog] downloads the catalog document, accepting gzip
// and zstd content encodings.
package transport
