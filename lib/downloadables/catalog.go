// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/tidwall/jsonc"
)

// Catalog maps content ids to their expected size and CRC-32.
type Catalog struct {
	entries map[string]CatalogEntry
}

// NewCatalog returns a catalog holding a copy of entries.
func NewCatalog(entries map[string]CatalogEntry) *Catalog {
	c := &Catalog{entries: make(map[string]CatalogEntry, len(entries))}
	for id, entry := range entries {
		c.entries[id] = entry
	}
	return c
}

// ParseCatalog parses a catalog document. See Catalog.Load.
func ParseCatalog(document []byte, logger *slog.Logger) (*Catalog, error) {
	c := NewCatalog(nil)
	if err := c.Load(document, logger); err != nil {
		return nil, err
	}
	return c, nil
}

// Load replaces every entry with the contents of document:
//
//	{"assets": {"<id>": {"crc32": 12345, "size": 100}, ...}}
//
// Comments and trailing commas are accepted. Duplicate ids are logged
// and the first occurrence wins. Entries that fail Validate are logged
// and skipped. When parsing fails the catalog is left unchanged.
func (c *Catalog) Load(document []byte, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	entries, err := parseCatalogDocument(jsonc.ToJSON(document), logger)
	if err != nil {
		return err
	}
	c.entries = entries
	return nil
}

type catalogEntryDocument struct {
	CRC  *int64 `json:"crc32"`
	Size *int64 `json:"size"`
}

func parseCatalogDocument(document []byte, logger *slog.Logger) (map[string]CatalogEntry, error) {
	decoder := json.NewDecoder(bytes.NewReader(document))
	if err := expectDelim(decoder, '{'); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	var entries map[string]CatalogEntry
	for decoder.More() {
		key, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if key != "assets" {
			var skipped json.RawMessage
			if err := decoder.Decode(&skipped); err != nil {
				return nil, fmt.Errorf("catalog: field %v: %w", key, err)
			}
			continue
		}
		if entries != nil {
			return nil, fmt.Errorf("catalog: assets declared twice")
		}
		entries, err = parseAssets(decoder, logger)
		if err != nil {
			return nil, err
		}
	}
	if err := expectDelim(decoder, '}'); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, fmt.Errorf("catalog: trailing data after document")
	}
	if entries == nil {
		return nil, fmt.Errorf("catalog: missing assets")
	}
	return entries, nil
}

func parseAssets(decoder *json.Decoder, logger *slog.Logger) (map[string]CatalogEntry, error) {
	if err := expectDelim(decoder, '{'); err != nil {
		return nil, fmt.Errorf("catalog: assets: %w", err)
	}
	entries := make(map[string]CatalogEntry)
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("catalog: assets: %w", err)
		}
		id, _ := token.(string)

		var document catalogEntryDocument
		if err := decoder.Decode(&document); err != nil {
			return nil, fmt.Errorf("catalog: asset %q: %w", id, err)
		}
		if document.CRC == nil || document.Size == nil {
			logger.Warn("catalog entry missing crc32 or size, skipping", "id", id)
			continue
		}
		if *document.CRC < 0 || *document.CRC > math.MaxUint32 {
			logger.Warn("catalog entry crc32 out of range, skipping", "id", id, "crc32", *document.CRC)
			continue
		}
		entry := CatalogEntry{CRC: uint32(*document.CRC), Size: *document.Size}
		if err := entry.Validate(); err != nil {
			logger.Warn("invalid catalog entry, skipping", "id", id, "error", err)
			continue
		}
		if _, duplicate := entries[id]; duplicate {
			logger.Warn("duplicate catalog id, keeping first occurrence", "id", id)
			continue
		}
		entries[id] = entry
	}
	if err := expectDelim(decoder, '}'); err != nil {
		return nil, fmt.Errorf("catalog: assets: %w", err)
	}
	return entries, nil
}

func expectDelim(decoder *json.Decoder, want json.Delim) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, token)
	}
	return nil
}

// ToJSON encodes the catalog in the same format Load accepts, with ids
// in sorted order.
func (c *Catalog) ToJSON() ([]byte, error) {
	return json.Marshal(struct {
		Assets map[string]CatalogEntry `json:"assets"`
	}{Assets: c.entries})
}

// Get returns the entry for id.
func (c *Catalog) Get(id string) (CatalogEntry, bool) {
	entry, ok := c.entries[id]
	return entry, ok
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.entries[id]
	return ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// IDs returns every id in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns a copy of the id to entry map.
func (c *Catalog) Entries() map[string]CatalogEntry {
	entries := make(map[string]CatalogEntry, len(c.entries))
	for id, entry := range c.entries {
		entries[id] = entry
	}
	return entries
}

// TotalSize sums the declared size of every entry.
func (c *Catalog) TotalSize() int64 {
	var total int64
	for _, entry := range c.entries {
		total += entry.Size
	}
	return total
}

// Equal reports whether both catalogs hold the same entries.
func (c *Catalog) Equal(other *Catalog) bool {
	if len(c.entries) != len(other.entries) {
		return false
	}
	for id, entry := range c.entries {
		if otherEntry, ok := other.entries[id]; !ok || otherEntry != entry {
			return false
		}
	}
	return true
}
