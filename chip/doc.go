// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chip is the controller for one UWB chip reachable over a
// byte-stream transport (a serial device or an emulator's virtual
// console).
//
// A [Chip] multiplexes its transport among client sessions. At most one
// [Client] is bound at a time:
//
//	CLOSED --Open--> OPENED --Close--> CLOSED
//	                   |
//	                   +--client death--> CLOSED
//
// Commands flow one way: [Chip.SendMessage] writes a UCI packet and
// returns the number of bytes written. Responses and notifications are
// not return values; they arrive through the reader loop, a goroutine
// started by [New] that owns the read half of the transport, decodes
// UCI frames with [uci.ReadFrame], and delivers each frame to whichever
// client is bound at that moment. Frames that arrive while no client is
// bound are discarded. That is how the response to the reset command
// written by [Chip.Close] is absorbed.
//
// Session state is guarded by a single lock. Every public operation,
// the reader loop's dispatch step, and the death handler take it for
// their whole critical section and release it on every exit path. The
// death handler never runs on the notifier's goroutine: it is scheduled
// onto its own goroutine and only clears the binding that armed it, so a
// late notification from an earlier client cannot close a newer one.
//
// The reader loop has no reconnect policy. When the transport fails the
// loop ends, [Chip.Done] is closed, and [Chip.Err] reports why; the
// owning process is expected to exit and be restarted.
package chip
