// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for dlcache.
//
// The central type is [Command], which represents a named subcommand
// with optional nested [Command.Subcommands], a [pflag.FlagSet] factory,
// and a Run function. Commands are assembled into a tree in
// cmd/dlcache/main.go and dispatched via [Command.Execute], which
// handles flag parsing, subcommand routing, and structured help output
// with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match (threshold: distance <= 3).
//
// [NewCommandLogger] picks a text or JSON slog handler depending on
// whether stderr is a terminal, and [JSONOutput] adds a --json flag to
// commands that print structured results.
package cli
