// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/downloadables/lib/codec"
	"github.com/bureau-foundation/downloadables/lib/disk"
)

// SnapshotName is the State file holding the last loaded catalog.
const SnapshotName = "catalog.snapshot"

const snapshotVersion = 1

type catalogSnapshot struct {
	Version int                     `cbor:"version"`
	SavedAt int64                   `cbor:"saved_at"`
	Entries map[string]CatalogEntry `cbor:"entries"`
}

// SaveCatalogSnapshot persists catalog so a later process can start
// without reaching the server.
func SaveCatalogSnapshot(d *disk.Disk, catalog *Catalog, now time.Time) error {
	data, err := codec.MarshalCompressed(catalogSnapshot{
		Version: snapshotVersion,
		SavedAt: now.Unix(),
		Entries: catalog.entries,
	})
	if err != nil {
		return fmt.Errorf("encoding catalog snapshot: %w", err)
	}
	return d.FileWriteAllBytes(disk.State, SnapshotName, data)
}

// LoadCatalogSnapshot returns the last saved catalog and when it was
// saved. The error satisfies disk.IsNotExist when there is none.
func LoadCatalogSnapshot(d *disk.Disk) (*Catalog, time.Time, error) {
	data, err := d.FileReadAllBytes(disk.State, SnapshotName)
	if err != nil {
		return nil, time.Time{}, err
	}
	var snapshot catalogSnapshot
	if err := codec.UnmarshalCompressed(data, &snapshot); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding catalog snapshot: %w", err)
	}
	if snapshot.Version != snapshotVersion {
		return nil, time.Time{}, fmt.Errorf("catalog snapshot version %d, want %d", snapshot.Version, snapshotVersion)
	}
	for id, entry := range snapshot.Entries {
		if err := entry.Validate(); err != nil {
			return nil, time.Time{}, fmt.Errorf("catalog snapshot entry %q: %w", id, err)
		}
	}
	return NewCatalog(snapshot.Entries), time.Unix(snapshot.SavedAt, 0).UTC(), nil
}
