// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the bridge daemon's Unix socket protocol
// and the client side of it.
//
// Every connection starts with one CBOR request map carrying an
// "action" field. For request-response actions the server writes one
// [Response] and closes the connection. For streaming actions the
// handler keeps the connection and writes a sequence of CBOR values
// until it returns; the client writes nothing more, so a read on the
// server side completes only when the client closes its end.
//
// Failures carry a machine-readable code next to the message. Requests
// for an action nobody registered fail with [CodeUnimplemented].
package service
