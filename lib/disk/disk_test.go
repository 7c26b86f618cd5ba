// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package disk

import (
	"errors"
	"hash/crc32"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/bureau-foundation/downloadables/lib/clock"
)

func newTestDisk(t *testing.T) (*Disk, *MemoryDriver, *clock.FakeClock) {
	t.Helper()
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	driver := NewMemory()
	driver.SetNow(fakeClock.Now)
	return New(Config{Driver: driver, Clock: fakeClock}), driver, fakeClock
}

func TestFileJSONRoundtrip(t *testing.T) {
	d, _, _ := newTestDisk(t)

	type record struct {
		CRC  uint32 `json:"crc32"`
		Size int64  `json:"size"`
	}
	if err := d.FileWriteJSON(Manifests, "level_1", record{CRC: 7, Size: 42}); err != nil {
		t.Fatal(err)
	}

	var decoded record
	if err := d.FileReadJSON(Manifests, "level_1", &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.CRC != 7 || decoded.Size != 42 {
		t.Errorf("decoded = %+v, want {7 42}", decoded)
	}
}

func TestFileReadMissing(t *testing.T) {
	d, _, _ := newTestDisk(t)

	_, err := d.FileReadAllBytes(Downloads, "absent")
	if err == nil {
		t.Fatal("expected error reading a missing file")
	}
	if !IsNotExist(err) {
		t.Errorf("IsNotExist(%v) = false, want true", err)
	}
	if KindOf(err) != KindIO {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindIO)
	}

	exists, err := d.FileExists(Downloads, "absent")
	if err != nil || exists {
		t.Errorf("FileExists = %v, %v; want false, nil", exists, err)
	}
	info, err := d.FileGetInfo(Downloads, "absent")
	if err != nil || info.Exists {
		t.Errorf("FileGetInfo = %+v, %v; want missing, nil", info, err)
	}
}

func TestFileReadJSONCorrupt(t *testing.T) {
	d, driver, _ := newTestDisk(t)
	driver.Put(Manifests, "broken", []byte("{not json"))

	var v map[string]any
	err := d.FileReadJSON(Manifests, "broken", &v)
	if KindOf(err) != KindIO {
		t.Fatalf("err = %v, want KindIO", err)
	}
	if IsNotExist(err) {
		t.Error("corrupt file reported as missing")
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"permission", fs.ErrPermission, KindUnauthorizedAccess},
		{"no space", ErrNoSpace, KindOutOfSpace},
		{"other", errors.New("device on fire"), KindIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, driver, _ := newTestDisk(t)
			driver.SetFault(Downloads, "blob", tt.err)

			_, err := d.FileGetInfo(Downloads, "blob")
			if KindOf(err) != tt.want {
				t.Errorf("KindOf = %v, want %v", KindOf(err), tt.want)
			}
			var diskError *Error
			if !errors.As(err, &diskError) {
				t.Fatalf("err %T is not *Error", err)
			}
			if diskError.Op != "stat" || diskError.Dir != Downloads || diskError.Name != "blob" {
				t.Errorf("error fields = %+v", diskError)
			}
			if !errors.Is(err, tt.err) {
				t.Error("error does not unwrap to the driver error")
			}
		})
	}
}

func TestIssueNotificationIsThrottled(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	driver := NewMemory()
	var issues []Kind
	d := New(Config{
		Driver:            driver,
		Clock:             fakeClock,
		IssueNotifyPeriod: 10 * time.Second,
		OnIssue:           func(kind Kind) { issues = append(issues, kind) },
	})
	driver.SetFault(Manifests, "", fs.ErrPermission)

	for range 3 {
		d.FileDelete(Manifests, "a")
	}
	if len(issues) != 1 {
		t.Fatalf("issues = %v, want one notification", issues)
	}

	fakeClock.Advance(10 * time.Second)
	d.FileDelete(Manifests, "a")
	if len(issues) != 2 {
		t.Fatalf("issues = %v, want a second notification after the period", issues)
	}

	// IO errors never notify.
	driver.SetFault(Manifests, "", errors.New("flaky"))
	fakeClock.Advance(time.Minute)
	d.FileDelete(Manifests, "a")
	if len(issues) != 2 {
		t.Errorf("issues = %v, IO errors should not notify", issues)
	}
}

func TestFileAppendAndCRC(t *testing.T) {
	d, _, _ := newTestDisk(t)

	writer, err := d.FileAppend(Downloads, "blob", false)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(writer, "1234")
	writer.Close()

	writer, err = d.FileAppend(Downloads, "blob", false)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(writer, "56789")
	writer.Close()

	crc, n, err := d.FileCRC32(Downloads, "blob")
	if err != nil {
		t.Fatal(err)
	}
	if n != 9 {
		t.Errorf("bytes read = %d, want 9", n)
	}
	if want := crc32.ChecksumIEEE([]byte("123456789")); crc != want {
		t.Errorf("crc = %#x, want %#x", crc, want)
	}

	writer, err = d.FileAppend(Downloads, "blob", true)
	if err != nil {
		t.Fatal(err)
	}
	writer.Close()
	info, _ := d.FileGetInfo(Downloads, "blob")
	if info.Size != 0 {
		t.Errorf("size after truncate = %d, want 0", info.Size)
	}
}

func TestAppendOutOfSpace(t *testing.T) {
	d, driver, _ := newTestDisk(t)
	driver.SetCapacity(4)

	writer, err := d.FileAppend(Downloads, "blob", false)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()
	if _, err := writer.Write([]byte("abcd")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	_, err = writer.Write([]byte("e"))
	if KindOf(err) != KindOutOfSpace {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindOutOfSpace)
	}
	free, err := d.FreeSpace(Downloads)
	if err != nil || free != 0 {
		t.Errorf("FreeSpace = %d, %v; want 0, nil", free, err)
	}
}

func TestInvalidNames(t *testing.T) {
	d, _, _ := newTestDisk(t)
	for _, name := range []string{"", "..", "a/b", `a\b`, ".hidden"} {
		if err := d.FileWriteAllBytes(State, name, nil); !errors.Is(err, ErrInvalidName) {
			t.Errorf("write %q: err = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestDirectoryGetFiles(t *testing.T) {
	d, driver, _ := newTestDisk(t)
	driver.Put(Downloads, "b", nil)
	driver.Put(Downloads, "a", nil)
	driver.Put(Manifests, "c", nil)

	names, err := d.DirectoryGetFiles(Downloads)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v, want [a b]", names)
	}
}
