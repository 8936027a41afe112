// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture records UCI traffic to a compact file and reads it
// back.
//
// A capture file is the 8-byte magic "UWBCAP01" followed by chunks.
// Each chunk has a fixed header and a body:
//
//	offset  size  field
//	0       1     compression tag (0 none, 1 lz4, 2 zstd)
//	1       4     uncompressed body size, little-endian
//	5       4     stored body size, little-endian
//	9       32    BLAKE3-256 of the uncompressed body
//	41      n     stored body
//
// The uncompressed body is a CBOR array of [Record]. A body that does
// not shrink under the configured compression is stored with tag none.
//
// [Writer] batches records and writes a chunk when the batch is full,
// when its flush interval elapses, and on Close. [Writer.Tap] adapts a
// writer into a [chip.Tap]. [Reader] returns one chunk at a time and
// rejects chunks whose digest does not match.
package capture
