// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tidwall/jsonc"
)

// BundleGroup is a named set of bundles downloaded and loaded together.
type BundleGroup struct {
	ID        string
	BundleIDs []string

	// Priority orders automatic downloads. Zero means the downloadables
	// default.
	Priority int
}

// BundleCatalog declares every bundle, its direct dependencies, the
// bundles that ship locally, and the bundle groups.
type BundleCatalog struct {
	dependencies map[string][]string
	declared     []string
	local        map[string]bool
	groups       map[string]*BundleGroup
}

type bundleCatalogDocument struct {
	Local        []string                       `json:"local"`
	Dependencies map[string][]string            `json:"dependencies"`
	Groups       map[string]bundleGroupDocument `json:"groups,omitempty"`
}

type bundleGroupDocument struct {
	Bundles  []string `json:"bundles"`
	Priority int      `json:"priority,omitempty"`
}

// ParseBundleCatalog parses
//
//	{
//	  "local": ["<id>", ...],
//	  "dependencies": {"<id>": ["<direct dependency>", ...], ...},
//	  "groups": {"<group>": {"bundles": ["<id>", ...], "priority": 1}}
//	}
//
// A bundle exists only if it has a "dependencies" key. Local ids and
// dependencies naming undeclared bundles are logged and dropped. A
// bundle is local if it is listed as local or is a dependency of a
// local bundle. Comments are accepted. An empty document is an empty
// catalog.
func ParseBundleCatalog(document []byte, logger *slog.Logger) (*BundleCatalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var parsed bundleCatalogDocument
	if len(document) > 0 {
		if err := json.Unmarshal(jsonc.ToJSON(document), &parsed); err != nil {
			return nil, fmt.Errorf("bundle catalog: %w", err)
		}
	}

	c := &BundleCatalog{
		dependencies: make(map[string][]string, len(parsed.Dependencies)),
		local:        make(map[string]bool),
		groups:       make(map[string]*BundleGroup, len(parsed.Groups)),
	}
	for id, direct := range parsed.Dependencies {
		kept := make([]string, 0, len(direct))
		for _, dependency := range direct {
			if _, ok := parsed.Dependencies[dependency]; !ok {
				logger.Error("bundle dependency is not declared",
					"bundle", id, "dependency", dependency)
				continue
			}
			if dependency == id || contains(kept, dependency) {
				continue
			}
			kept = append(kept, dependency)
		}
		c.dependencies[id] = kept
	}
	for _, id := range parsed.Local {
		if _, ok := c.dependencies[id]; !ok {
			logger.Error("local bundle is not declared", "bundle", id)
			continue
		}
		if contains(c.declared, id) {
			continue
		}
		c.declared = append(c.declared, id)
		for _, localID := range c.DependenciesIncludingSelf(id) {
			c.local[localID] = true
		}
	}
	for groupID, group := range parsed.Groups {
		c.groups[groupID] = &BundleGroup{
			ID:        groupID,
			BundleIDs: dedupe(group.Bundles),
			Priority:  group.Priority,
		}
	}
	return c, nil
}

// Has reports whether id is a declared bundle.
func (c *BundleCatalog) Has(id string) bool {
	_, ok := c.dependencies[id]
	return ok
}

// IDs returns every bundle id, sorted.
func (c *BundleCatalog) IDs() []string {
	ids := make([]string, 0, len(c.dependencies))
	for id := range c.dependencies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsLocal reports whether id ships with the application.
func (c *BundleCatalog) IsLocal(id string) bool { return c.local[id] }

// LocalIDs returns every local bundle id, sorted.
func (c *BundleCatalog) LocalIDs() []string {
	ids := make([]string, 0, len(c.local))
	for id := range c.local {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RemoteIDs returns every bundle that must be downloaded, sorted.
func (c *BundleCatalog) RemoteIDs() []string {
	var ids []string
	for _, id := range c.IDs() {
		if !c.local[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Dependencies returns the transitive dependencies of id in depth-first
// order, without id itself.
func (c *BundleCatalog) Dependencies(id string) []string {
	all := c.DependenciesIncludingSelf(id)
	if len(all) == 0 {
		return nil
	}
	return all[1:]
}

// DependenciesIncludingSelf returns id followed by its transitive
// dependencies in depth-first order, or nil for an unknown id. Cycles
// are tolerated.
func (c *BundleCatalog) DependenciesIncludingSelf(id string) []string {
	if !c.Has(id) {
		return nil
	}
	var ids []string
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(current string) {
		if seen[current] {
			return
		}
		seen[current] = true
		ids = append(ids, current)
		for _, dependency := range c.dependencies[current] {
			visit(dependency)
		}
	}
	visit(id)
	return ids
}

// Group returns the group with the given id.
func (c *BundleCatalog) Group(id string) (*BundleGroup, bool) {
	group, ok := c.groups[id]
	return group, ok
}

// Groups returns every group ordered by id.
func (c *BundleCatalog) Groups() []*BundleGroup {
	groups := make([]*BundleGroup, 0, len(c.groups))
	for _, group := range c.groups {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

// ToJSON encodes the catalog as ParseBundleCatalog reads it, with
// dropped entries omitted.
func (c *BundleCatalog) ToJSON() ([]byte, error) {
	document := bundleCatalogDocument{
		Local:        append([]string{}, c.declared...),
		Dependencies: make(map[string][]string, len(c.dependencies)),
	}
	for id, direct := range c.dependencies {
		document.Dependencies[id] = append([]string{}, direct...)
	}
	if len(c.groups) > 0 {
		document.Groups = make(map[string]bundleGroupDocument, len(c.groups))
		for id, group := range c.groups {
			document.Groups[id] = bundleGroupDocument{
				Bundles:  append([]string{}, group.BundleIDs...),
				Priority: group.Priority,
			}
		}
	}
	return json.Marshal(document)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
