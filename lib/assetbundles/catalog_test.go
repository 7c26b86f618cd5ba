// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

import (
	"reflect"
	"testing"
)

const cubesCatalog = `{
	"local": ["asset_cubes"],
	"dependencies": {
		"asset_cubes": ["asset_materials"],
		"asset_materials": ["asset_textures"],
		"asset_textures": ["asset_colors", "asset_textures_common"],
		"asset_textures_common": [],
		"asset_colors": [],
		"asset_spheres": ["asset_materials"]
	}
}`

func TestBundleCatalogDependencies(t *testing.T) {
	catalog, err := ParseBundleCatalog([]byte(cubesCatalog), nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id    string
		local bool
		deps  []string
	}{
		{"asset_cubes", true, []string{"asset_materials", "asset_textures", "asset_colors", "asset_textures_common"}},
		// A dependency of a local bundle is local too.
		{"asset_materials", true, []string{"asset_textures", "asset_colors", "asset_textures_common"}},
		{"asset_colors", true, nil},
		// Remote even though everything it needs is local.
		{"asset_spheres", false, []string{"asset_materials", "asset_textures", "asset_colors", "asset_textures_common"}},
		{"missing", false, nil},
	}
	for _, test := range tests {
		t.Run(test.id, func(t *testing.T) {
			if got := catalog.IsLocal(test.id); got != test.local {
				t.Errorf("IsLocal = %v, want %v", got, test.local)
			}
			got := catalog.Dependencies(test.id)
			if len(got) != len(test.deps) || (len(got) > 0 && !reflect.DeepEqual(got, test.deps)) {
				t.Errorf("Dependencies = %v, want %v", got, test.deps)
			}
		})
	}

	if got, want := catalog.DependenciesIncludingSelf("asset_textures"),
		[]string{"asset_textures", "asset_colors", "asset_textures_common"}; !reflect.DeepEqual(got, want) {
		t.Errorf("DependenciesIncludingSelf = %v, want %v", got, want)
	}
	if got, want := catalog.RemoteIDs(), []string{"asset_spheres"}; !reflect.DeepEqual(got, want) {
		t.Errorf("RemoteIDs = %v, want %v", got, want)
	}
}

func TestBundleCatalogDropsUndeclaredIDs(t *testing.T) {
	catalog, err := ParseBundleCatalog([]byte(`{
		"local": ["asset_cubes", "ghost"],
		"dependencies": {
			"asset_cubes": ["ghost", "asset_cubes"]
		}
	}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if catalog.Has("ghost") || catalog.IsLocal("ghost") {
		t.Error("undeclared bundle accepted")
	}
	if got := catalog.Dependencies("asset_cubes"); len(got) != 0 {
		t.Errorf("Dependencies = %v, want none", got)
	}
	if !catalog.IsLocal("asset_cubes") {
		t.Error("asset_cubes is not local")
	}
}

func TestBundleCatalogWithoutLocalDeclaration(t *testing.T) {
	catalog, err := ParseBundleCatalog([]byte(`{"local": ["asset_cubes"], "dependencies": {}}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if catalog.Has("asset_cubes") || catalog.IsLocal("asset_cubes") {
		t.Error("local id without a dependencies entry was kept")
	}
}

func TestBundleCatalogEmpty(t *testing.T) {
	for _, document := range []string{"", "{}"} {
		catalog, err := ParseBundleCatalog([]byte(document), nil)
		if err != nil {
			t.Fatalf("%q: %v", document, err)
		}
		if len(catalog.IDs()) != 0 || len(catalog.Groups()) != 0 {
			t.Errorf("%q: catalog is not empty", document)
		}
	}
}

func TestBundleCatalogRejectsMalformed(t *testing.T) {
	if _, err := ParseBundleCatalog([]byte(`{"dependencies": [`), nil); err == nil {
		t.Fatal("malformed catalog parsed")
	}
}

func TestBundleCatalogRoundTrip(t *testing.T) {
	original, err := ParseBundleCatalog([]byte(worldCatalog), nil)
	if err != nil {
		t.Fatal(err)
	}
	encoded, err := original.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := ParseBundleCatalog(encoded, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Errorf("round trip changed the catalog:\n got %s", encoded)
	}

	group, ok := decoded.Group("world_1")
	if !ok {
		t.Fatal("world_1 lost")
	}
	if group.Priority != 1 || !reflect.DeepEqual(group.BundleIDs, []string{"scene_1"}) {
		t.Errorf("world_1 = %+v", group)
	}
}
