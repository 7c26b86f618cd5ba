// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import (
	"reflect"
	"testing"
)

func TestCatalogGroupDeduplicates(t *testing.T) {
	group := NewCatalogGroup("core", []string{"a", "b", "a", "c", "b"}, 1)
	if got, want := group.EntryIDs(), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("EntryIDs = %v, want %v", got, want)
	}
	if !group.Contains("c") || group.Contains("d") {
		t.Error("Contains disagrees with EntryIDs")
	}
}

func TestCatalogGroupDefaultPriority(t *testing.T) {
	if got := NewCatalogGroup("g", nil, 0).Priority(); got != DefaultPriority {
		t.Errorf("priority = %d, want %d", got, DefaultPriority)
	}
	group := NewCatalogGroup("g", nil, 3)
	group.SetPriority(-1)
	if group.Priority() != DefaultPriority {
		t.Errorf("priority = %d, want %d", group.Priority(), DefaultPriority)
	}
}

func TestResolveEntryIDs(t *testing.T) {
	first := NewCatalogGroup("first", []string{"a", "b"}, 1)
	second := NewCatalogGroup("second", []string{"b", "c"}, 2)
	if got, want := ResolveEntryIDs(first, second), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveEntryIDs = %v, want %v", got, want)
	}
	if got := ResolveEntryIDs(); len(got) != 0 {
		t.Errorf("ResolveEntryIDs() = %v, want empty", got)
	}
}

func TestLinkedGroupsSharePermission(t *testing.T) {
	shop := NewCatalogGroup("shop", []string{"a"}, 1)
	popup := NewCatalogGroup("popup", []string{"b"}, 2)
	settings := NewCatalogGroup("settings", []string{"c"}, 3)

	popup.SetPermissionOverCarrierGranted(true)
	shop.Link(popup)

	if !shop.PermissionOverCarrierGranted() {
		t.Error("linking did not merge the granted flag")
	}

	settings.Link(shop)
	settings.SetPermissionRequested(true)
	for _, group := range []*CatalogGroup{shop, popup, settings} {
		if !group.PermissionRequested() {
			t.Errorf("%s: requested flag did not propagate", group.ID())
		}
		if group.Permission() != settings.Permission() {
			t.Errorf("%s: does not share the canonical record", group.ID())
		}
	}
	if got := len(popup.LinkedGroups()); got != 3 {
		t.Errorf("LinkedGroups = %d, want 3", got)
	}

	shop.SetPermissionOverCarrierGranted(false)
	if popup.PermissionOverCarrierGranted() || settings.PermissionOverCarrierGranted() {
		t.Error("revoking on one linked group did not apply to all")
	}

	// Linking groups that already share a record is a no-op.
	shop.Link(popup, settings)
	if got := len(shop.LinkedGroups()); got != 3 {
		t.Errorf("LinkedGroups after relink = %d, want 3", got)
	}
}

func TestSortGroupsByPriority(t *testing.T) {
	groups := []*CatalogGroup{
		NewCatalogGroup("later", nil, 5),
		NewCatalogGroup("unscheduled", nil, DefaultPriority),
		NewCatalogGroup("b-first", nil, 1),
		NewCatalogGroup("a-first", nil, 1),
	}
	SortGroupsByPriority(groups)
	var order []string
	for _, group := range groups {
		order = append(order, group.ID())
	}
	if want := []string{"a-first", "b-first", "later", "unscheduled"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}
