// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that measure latency, classify token expiry, or sleep
// between retry attempts take a Clock instead of calling the time
// package directly. Production code passes Real(); tests pass a
// FakeClock and move time forward explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go worker(c)
//	c.WaitForTimers(1)         // worker is now blocked in After
//	c.Advance(200 * time.Millisecond)
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing the clock.
package clock
