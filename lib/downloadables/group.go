// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import "sort"

// DefaultPriority is the priority of a group that is never scheduled
// for automatic download. Priority 1 is the highest.
const DefaultPriority = 100

// Permission is the download consent shared by a set of linked groups.
// It is persisted per group as {"pr": 0|1, "pg": 0|1}.
type Permission struct {
	requested          bool
	overCarrierGranted bool
	dirty              bool
	members            []*CatalogGroup
}

// Requested reports whether the user has been asked for consent.
func (p *Permission) Requested() bool { return p.requested }

// OverCarrierGranted reports whether downloading over carrier data is
// allowed.
func (p *Permission) OverCarrierGranted() bool { return p.overCarrierGranted }

type permissionDocument struct {
	Requested          int `json:"pr"`
	OverCarrierGranted int `json:"pg"`
}

func (p *Permission) document() permissionDocument {
	var document permissionDocument
	if p.requested {
		document.Requested = 1
	}
	if p.overCarrierGranted {
		document.OverCarrierGranted = 1
	}
	return document
}

// CatalogGroup is a named set of ids that share a priority and a
// download permission.
type CatalogGroup struct {
	id         string
	entryIDs   []string
	priority   int
	permission *Permission
}

// NewCatalogGroup returns a group over the deduplicated entryIDs, in
// first-seen order. A priority below 1 becomes DefaultPriority.
func NewCatalogGroup(id string, entryIDs []string, priority int) *CatalogGroup {
	if priority < 1 {
		priority = DefaultPriority
	}
	g := &CatalogGroup{
		id:       id,
		entryIDs: dedupe(entryIDs),
		priority: priority,
	}
	g.permission = &Permission{members: []*CatalogGroup{g}}
	return g
}

// ID returns the group id.
func (g *CatalogGroup) ID() string { return g.id }

// EntryIDs returns the member ids.
func (g *CatalogGroup) EntryIDs() []string { return append([]string(nil), g.entryIDs...) }

// Contains reports whether id is a member.
func (g *CatalogGroup) Contains(id string) bool {
	for _, member := range g.entryIDs {
		if member == id {
			return true
		}
	}
	return false
}

// Priority returns the scheduling priority; lower runs first.
func (g *CatalogGroup) Priority() int { return g.priority }

// SetPriority changes the scheduling priority. A value below 1 becomes
// DefaultPriority.
func (g *CatalogGroup) SetPriority(priority int) {
	if priority < 1 {
		priority = DefaultPriority
	}
	g.priority = priority
}

// Permission returns the shared permission record.
func (g *CatalogGroup) Permission() *Permission { return g.permission }

// PermissionRequested reports the shared requested flag.
func (g *CatalogGroup) PermissionRequested() bool { return g.permission.requested }

// PermissionOverCarrierGranted reports the shared over-carrier flag.
func (g *CatalogGroup) PermissionOverCarrierGranted() bool {
	return g.permission.overCarrierGranted
}

// SetPermissionRequested updates the flag for every linked group.
func (g *CatalogGroup) SetPermissionRequested(requested bool) {
	if g.permission.requested != requested {
		g.permission.requested = requested
		g.permission.dirty = true
	}
}

// SetPermissionOverCarrierGranted updates the flag for every linked
// group.
func (g *CatalogGroup) SetPermissionOverCarrierGranted(granted bool) {
	if g.permission.overCarrierGranted != granted {
		g.permission.overCarrierGranted = granted
		g.permission.dirty = true
	}
}

// Link makes g and others share one permission record. Each flag of the
// merged record is set if it was set on any of the records merged.
func (g *CatalogGroup) Link(others ...*CatalogGroup) {
	canonical := g.permission
	for _, other := range others {
		absorbed := other.permission
		if absorbed == canonical {
			continue
		}
		canonical.requested = canonical.requested || absorbed.requested
		canonical.overCarrierGranted = canonical.overCarrierGranted || absorbed.overCarrierGranted
		canonical.dirty = true
		for _, member := range absorbed.members {
			member.permission = canonical
			canonical.members = append(canonical.members, member)
		}
		absorbed.members = nil
	}
}

// LinkedGroups returns every group sharing g's permission record,
// including g.
func (g *CatalogGroup) LinkedGroups() []*CatalogGroup {
	return append([]*CatalogGroup(nil), g.permission.members...)
}

// restorePermission merges a persisted record into the shared one
// without marking it dirty.
func (g *CatalogGroup) restorePermission(document permissionDocument) {
	if document.Requested != 0 {
		g.permission.requested = true
	}
	if document.OverCarrierGranted != 0 {
		g.permission.overCarrierGranted = true
	}
}

// ResolveEntryIDs returns the deduplicated union of the groups' ids, in
// group order then member order.
func ResolveEntryIDs(groups ...*CatalogGroup) []string {
	var ids []string
	for _, group := range groups {
		ids = append(ids, group.entryIDs...)
	}
	return dedupe(ids)
}

// SortGroupsByPriority orders groups by ascending priority, breaking
// ties by id.
func SortGroupsByPriority(groups []*CatalogGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].priority != groups[j].priority {
			return groups[i].priority < groups[j].priority
		}
		return groups[i].id < groups[j].id
	})
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
