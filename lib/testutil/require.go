// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive reads one value from ch within timeout, or fails the
// test.
//
//	request := testutil.RequireReceive(t, requests, 5*time.Second, "waiting for range request")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed without sending a value: %s", formatMessage(msgAndArgs))
		}
		return v
	case <-time.After(timeout): //nolint:realclock test hang prevention
		t.Fatalf("timed out after %v: %s", timeout, formatMessage(msgAndArgs))
	}
	panic("unreachable")
}

// RequireClosed waits for ch to be closed (or receive a value) within
// timeout, or fails the test.
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout): //nolint:realclock test hang prevention
		t.Fatalf("timed out after %v waiting for channel close: %s", timeout, formatMessage(msgAndArgs))
	}
}

// RequireEventually calls tick until done reports true, at most
// maxTicks times, and returns the number of ticks taken. done is
// checked before the first tick.
//
//	testutil.RequireEventually(t, 50, func() {
//	    fakeClock.Advance(100 * time.Millisecond)
//	    engine.Update()
//	}, func() bool { return engine.IsIDAvailable("level_1") }, "level_1 available")
func RequireEventually(t TB, maxTicks int, tick func(), done func() bool, msgAndArgs ...any) int {
	t.Helper()
	for ticks := 0; ticks <= maxTicks; ticks++ {
		if done() {
			return ticks
		}
		if ticks < maxTicks {
			tick()
		}
	}
	t.Fatalf("condition not met after %d ticks: %s", maxTicks, formatMessage(msgAndArgs))
	panic("unreachable")
}

// RequireEventuallyWithin polls done every millisecond of wall time
// until it reports true or timeout elapses. Use it only for conditions
// driven by real goroutines.
func RequireEventuallyWithin(t TB, timeout time.Duration, done func() bool, msgAndArgs ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout) //nolint:realclock test hang prevention
	for !done() {
		if time.Now().After(deadline) { //nolint:realclock test hang prevention
			t.Fatalf("timed out after %v: %s", timeout, formatMessage(msgAndArgs))
		}
		time.Sleep(time.Millisecond) //nolint:realclock test hang prevention
	}
}

// formatMessage formats optional message arguments into a string.
// Accepts either a single string or a format string followed by args.
func formatMessage(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return "(no message)"
	}
	if len(msgAndArgs) == 1 {
		if s, ok := msgAndArgs[0].(string); ok {
			return s
		}
		return fmt.Sprintf("%v", msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprintf("%v", msgAndArgs)
}
