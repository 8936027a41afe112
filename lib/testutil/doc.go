// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the helpers shared by the bridge's tests.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout pattern. They are the only place tests use the
// wall clock, and only as a hang guard.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes.
//
// [UniqueID] produces distinct names for concurrent test cases.
//
// [PipeTransport] stands in for a chip's serial line: tests write
// inbound bytes into it and read back what the bridge wrote.
package testutil
