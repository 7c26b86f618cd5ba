// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the tick-driven
// engines in this module.
//
// The download engine and the bundle operation framework never block on
// time. They compare Now against stored timestamps once per Update
// (error cooldowns, debounced manifest saves, periodic file rechecks).
// Production code injects Real(); tests inject Fake() and move time with
// Advance so every cooldown is crossed deterministically.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	engine := downloadables.New(downloadables.Config{Clock: c, ...})
//	engine.Update()
//	c.Advance(3 * time.Second) // error cooldown elapses
//	engine.Update()
//
// Sleep exists for the outer tick loop of command-line tools. On a
// FakeClock it advances time instead of blocking, so a tick loop under
// test runs at full speed while observing realistic timestamps.
package clock
