// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"hash/crc32"
	"testing"
)

func TestForgeCRC32(t *testing.T) {
	for _, target := range []uint32{0, 1, 12345, 0xDEADBEEF, 0xFFFFFFFF} {
		payload := Payload(100, target)
		if len(payload) != 100 {
			t.Fatalf("len = %d, want 100", len(payload))
		}
		if got := crc32.ChecksumIEEE(payload); got != target {
			t.Errorf("crc32 = %d, want %d", got, target)
		}
	}
}

func TestForgeCRC32EmptyPrefix(t *testing.T) {
	payload := ForgeCRC32(nil, 12345)
	if got := crc32.ChecksumIEEE(payload); got != 12345 {
		t.Errorf("crc32 = %d, want 12345", got)
	}
}

type recordingTB struct {
	failed bool
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatalf(string, ...any) {
	r.failed = true
	panic(r)
}

func TestRequireEventually(t *testing.T) {
	counter := 0
	ticks := RequireEventually(t, 10, func() { counter++ }, func() bool { return counter == 3 })
	if ticks != 3 {
		t.Errorf("ticks = %d, want 3", ticks)
	}

	recorder := &recordingTB{}
	func() {
		defer func() { recover() }()
		RequireEventually(recorder, 2, func() {}, func() bool { return false })
	}()
	if !recorder.failed {
		t.Error("RequireEventually did not fail when the condition never held")
	}
}
