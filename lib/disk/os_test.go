// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package disk

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newOSDriver(t *testing.T) (*OSDriver, string) {
	t.Helper()
	root := t.TempDir()
	return NewOS(OSPaths{
		Manifests: filepath.Join(root, "manifests"),
		Downloads: filepath.Join(root, "downloads"),
		Groups:    filepath.Join(root, "groups"),
		State:     filepath.Join(root, "state"),
	}), root
}

func TestOSWriteFileIsAtomic(t *testing.T) {
	driver, root := newOSDriver(t)

	if err := driver.WriteFile(Manifests, "level_1", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := driver.WriteFile(Manifests, "level_1", []byte("second")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(root, "manifests", "level_1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}

	entries, err := os.ReadDir(filepath.Join(root, "manifests"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, temporary file left behind", len(entries))
	}
}

func TestOSStatAndRemoveMissing(t *testing.T) {
	driver, _ := newOSDriver(t)

	info, err := driver.Stat(Downloads, "absent")
	if err != nil || info.Exists {
		t.Errorf("Stat = %+v, %v; want missing, nil", info, err)
	}
	if err := driver.Remove(Downloads, "absent"); err != nil {
		t.Errorf("Remove missing: %v", err)
	}
	names, err := driver.List(Downloads)
	if err != nil || len(names) != 0 {
		t.Errorf("List of missing directory = %v, %v", names, err)
	}
}

func TestOSAppendResume(t *testing.T) {
	driver, _ := newOSDriver(t)

	writer, err := driver.Append(Downloads, "blob", false)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(writer, "abc")
	writer.Close()

	writer, err = driver.Append(Downloads, "blob", false)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(writer, "def")
	writer.Close()

	info, err := driver.Stat(Downloads, "blob")
	if err != nil {
		t.Fatal(err)
	}
	if info.Size != 6 {
		t.Errorf("size = %d, want 6", info.Size)
	}

	names, err := driver.List(Downloads)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "blob" {
		t.Errorf("List = %v, want [blob]", names)
	}
}

func TestOSFreeSpaceOfMissingDirectory(t *testing.T) {
	driver, _ := newOSDriver(t)
	free, err := driver.FreeSpace(State)
	if err != nil {
		t.Fatal(err)
	}
	if free <= 0 {
		t.Errorf("FreeSpace = %d, want positive", free)
	}
}
