// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package uci implements the UWB Command Interface packet framing used
// on the serial link between the bridge and a UWB subsystem (UWBS).
//
// A UCI packet has no delimiter. Its length is carried in a fixed
// 4-byte header whose layout depends on the message type in the top
// three bits of byte 0:
//
//	byte 0: MT (bits 5-7) | PBF (bit 4) | GID (bits 0-3)
//	byte 1: OID (bits 0-5)
//	control packets (command, response, notification):
//	    byte 2: reserved, byte 3: payload length (0-255)
//	data packets:
//	    bytes 2-3: payload length, little-endian uint16 (0-65535)
//
// Misclassifying one packet desynchronizes every packet after it,
// since the stream carries no resynchronization markers. [ReadFrame]
// therefore trusts the header exactly as the UWBS wrote it; [ParseFrame]
// is the strict variant for packets that originate from operators and
// scripts, where a malformed header should be rejected before it reaches
// the wire.
//
// Outbound packets are built with [NewControlPacket] and
// [NewDataPacket]. [DeviceResetCommand] is the one control packet the
// bridge emits on its own.
package uci
