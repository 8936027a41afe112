// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package uwbclient is the Go client for the bridge daemon's socket.
//
// Each method makes one request on a fresh connection, except Open,
// which keeps its connection for the life of the binding. Errors the
// daemon reports come back wrapping the chip package's sentinels, so
//
//	if errors.Is(err, chip.ErrIllegalState) { ... }
//
// works the same on either side of the socket.
//
// A [Session] is the client end of an open chip. Its connection is the
// daemon's death watch: closing the session (or exiting) releases the
// chip, exactly as a dead in-process client would.
package uwbclient
