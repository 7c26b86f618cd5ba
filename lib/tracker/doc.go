// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracker records download events in a local SQLite database.
//
// [Store] implements [downloadables.Tracker]. Track never blocks the
// engine: events go through a buffered channel to a writer goroutine
// that inserts whatever has accumulated in one IMMEDIATE transaction.
// When the buffer is full, events are dropped and counted.
//
// The history answers questions the manifests cannot: how many
// attempts an id took, which ids keep failing verification, and when
// bytes last arrived. The CLI's history command reads it through
// [Store.Recent] and [Store.Summaries].
package tracker
