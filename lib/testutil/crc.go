// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "hash/crc32"

// ForgeCRC32 returns a payload of length len(prefix)+4 whose IEEE
// CRC-32 is target. The last four bytes are computed by running the
// CRC register backwards from target.
func ForgeCRC32(prefix []byte, target uint32) []byte {
	table := crc32.MakeTable(crc32.IEEE)

	// The top byte of each table entry is unique, which makes a single
	// register step invertible.
	var reverse [256]byte
	for index, value := range table {
		reverse[value>>24] = byte(index)
	}

	register := ^target
	for range 4 {
		index := reverse[register>>24]
		register = ((register ^ table[index]) << 8) | uint32(index)
	}
	patch := register ^ ^crc32.ChecksumIEEE(prefix)

	payload := make([]byte, 0, len(prefix)+4)
	payload = append(payload, prefix...)
	return append(payload,
		byte(patch), byte(patch>>8), byte(patch>>16), byte(patch>>24))
}

// Payload returns size bytes whose CRC-32 is target. size must be at
// least 4.
func Payload(size int, target uint32) []byte {
	if size < 4 {
		panic("testutil: Payload size must be at least 4")
	}
	prefix := make([]byte, size-4)
	for i := range prefix {
		prefix[i] = byte(i)
	}
	return ForgeCRC32(prefix, target)
}
