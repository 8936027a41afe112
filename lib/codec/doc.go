// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the bridge's single CBOR configuration.
//
// Everything the bridge serializes is CBOR: requests and responses on
// the daemon's Unix socket, the notification stream of an open session,
// and the record bodies of capture files. Encoding uses Core
// Deterministic Encoding (RFC 8949 §4.2), so equal values produce equal
// bytes. That matters for capture chunks, whose digests are taken over
// the encoded body.
//
// Wire types tag their fields with `cbor:"..."`. Types that also appear
// in uwbctl's --json output use `json` tags, which the CBOR library
// reads as a fallback.
package codec
