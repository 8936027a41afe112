// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chip

import "errors"

var (
	// ErrIllegalState reports an operation that is not valid in the
	// chip's current CLOSED/OPENED state. The state is unchanged.
	ErrIllegalState = errors.New("chip: illegal state")

	// ErrTransport reports a read or write failure on the transport.
	ErrTransport = errors.New("chip: transport i/o failed")

	// ErrRemoteGone reports that the bound client could not be
	// reached. On control paths the binding is released as if the
	// client had died.
	ErrRemoteGone = errors.New("chip: remote client gone")

	// ErrUnimplemented reports an operation outside the chip
	// surface. It is never retried and always fails the same way.
	ErrUnimplemented = errors.New("chip: not implemented")
)
