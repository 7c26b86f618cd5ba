// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the module's standard CBOR encoding
// configuration and the LZ4-framed variant used for state snapshots.
//
// Two serialization formats are in use with a clear boundary:
//
//   - JSON for documents exchanged with servers or shared with other
//     tools: the content catalog, per-entry manifests, group permission
//     files, bundle catalogs, and CLI --json output.
//   - CBOR for internal state that only this module reads back: the
//     catalog snapshot kept under the state directory.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical value always produces identical bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Snapshots go through the compressed variants, which wrap the CBOR
// bytes in an LZ4 frame:
//
//	data, err := codec.MarshalCompressed(snapshot)
//	err = codec.UnmarshalCompressed(data, &snapshot)
//
// Types that only ever travel as CBOR carry `cbor` struct tags. Types
// that are also written as JSON carry `json` tags, which fxamacker/cbor
// reads as a fallback. Never put both tags on one field.
package codec
