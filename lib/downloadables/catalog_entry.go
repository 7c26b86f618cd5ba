// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import "fmt"

// CatalogEntry is what the server declares about one content id.
type CatalogEntry struct {
	CRC  uint32 `json:"crc32"`
	Size int64  `json:"size"`
}

// Validate reports whether the entry is internally consistent. An empty
// entry must carry the CRC-32 of an empty byte sequence, which is zero.
func (e CatalogEntry) Validate() error {
	if e.Size < 0 {
		return fmt.Errorf("negative size %d", e.Size)
	}
	if e.Size == 0 && e.CRC != 0 {
		return fmt.Errorf("empty entry with non-zero crc32 %d", e.CRC)
	}
	return nil
}
