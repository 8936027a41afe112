// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the subset of the time package the bridge uses.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. A
	// non-positive d fires immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a ticker firing every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers periodic ticks on C, which has capacity 1: a slow
// reader misses ticks instead of queueing them. Stop does not close C.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off.
func (t *Ticker) Stop() { t.stop() }
