// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireEventually] drives a tick-based component until a condition
// holds, failing the test after a bounded number of ticks. It is the
// polling counterpart of [RequireReceive] for code that advances only
// when Update is called.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) for tests that wait
// on goroutines, such as HTTP transfers against an httptest server.
// These are the only place in the test suite where real wall-clock
// timeouts are used.
//
// [ForgeCRC32] builds payloads with a chosen CRC-32, so tests can use
// the literal checksums a catalog document declares.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
