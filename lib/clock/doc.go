// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for the bridge's periodic work:
// stream heartbeats, capture flushes, and record timestamps.
//
// Components take a [Clock] in their config. Binaries pass [Real];
// tests pass [Fake] and drive time with [FakeClock.Advance]:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	writer := capture.NewWriter(file, capture.WriterConfig{Clock: fake})
//	fake.WaitForTimers(1)           // the writer's flush ticker is armed
//	fake.Advance(time.Second)       // and now it fires
//
// WaitForTimers closes the gap between a goroutine creating a ticker
// and the test advancing past it.
package clock
