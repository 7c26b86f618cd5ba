// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

// CatalogEntryManifest records what was last verified for an id. It is
// persisted as one JSON file per id:
//
//	{"crc32": 12345, "size": 100, "t": 2, "v": 1}
//
// Every mutation marks the manifest dirty; the owning status writes it
// back no more often than Settings.SaveInterval.
type CatalogEntryManifest struct {
	entry           CatalogEntry
	downloadedTimes int
	verified        bool
	needsToSave     bool
}

type manifestDocument struct {
	CRC             uint32 `json:"crc32"`
	Size            int64  `json:"size"`
	DownloadedTimes int    `json:"t"`
	Verified        int    `json:"v"`
}

// Entry returns the catalog entry the manifest describes.
func (m *CatalogEntryManifest) Entry() CatalogEntry { return m.entry }

// DownloadedTimes returns how many downloads of this id have been
// verified.
func (m *CatalogEntryManifest) DownloadedTimes() int { return m.downloadedTimes }

// IsVerified reports whether the blob on disk was checked against Entry.
func (m *CatalogEntryManifest) IsVerified() bool { return m.verified }

// NeedsToSave reports whether the manifest changed since it was last
// persisted.
func (m *CatalogEntryManifest) NeedsToSave() bool { return m.needsToSave }

// Invalidate points the manifest at entry, clears verification and
// restarts the download count.
func (m *CatalogEntryManifest) Invalidate(entry CatalogEntry) {
	m.entry = entry
	m.verified = false
	m.downloadedTimes = 0
	m.needsToSave = true
}

// SetVerified marks the blob verified or not.
func (m *CatalogEntryManifest) SetVerified(verified bool) {
	if m.verified != verified {
		m.verified = verified
		m.needsToSave = true
	}
}

// IncrementDownloadedTimes records one more verified download.
func (m *CatalogEntryManifest) IncrementDownloadedTimes() {
	m.downloadedTimes++
	m.needsToSave = true
}

func (m *CatalogEntryManifest) restore(document manifestDocument) {
	m.entry = CatalogEntry{CRC: document.CRC, Size: document.Size}
	m.downloadedTimes = document.DownloadedTimes
	m.verified = document.Verified != 0
	m.needsToSave = false
}

func (m *CatalogEntryManifest) document() manifestDocument {
	document := manifestDocument{
		CRC:             m.entry.CRC,
		Size:            m.entry.Size,
		DownloadedTimes: m.downloadedTimes,
	}
	if m.verified {
		document.Verified = 1
	}
	return document
}

func (m *CatalogEntryManifest) markSaved() { m.needsToSave = false }
