// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the actions, request and response shapes, and
// error codes spoken on the bridge daemon's socket.
//
// Every request names a chip. Request-response actions map one-to-one
// onto [chip.Chip] methods. The "open" action is a stream: the client
// receives [Notification] values until its session ends, and closing
// the connection is how the daemon learns the client has died.
//
// A stream opens with an event notification (open_complete) followed by
// a result notification. A failed open sends only the result, carrying
// the error. After a successful result the stream carries uci, event,
// and heartbeat notifications, and ends when the session is released.
package ipc
