// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package uci

import (
	"encoding/binary"
	"fmt"
)

// ResetConfigUWBS is the only reset type defined for
// CORE_DEVICE_RESET_CMD: reset the whole subsystem.
const ResetConfigUWBS byte = 0x00

// NewControlPacket builds a command, response, or notification packet.
// The packet boundary flag is left clear; callers segmenting a message
// set bit 4 of byte 0 themselves.
func NewControlPacket(messageType MessageType, groupID, opcodeID uint8, payload []byte) ([]byte, error) {
	if messageType == MessageTypeData || messageType.Reserved() {
		return nil, fmt.Errorf("uci: %s is not a control message type", messageType)
	}
	if len(payload) > MaxControlPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds control limit %d", ErrPayloadTooLarge, len(payload), MaxControlPayload)
	}
	packet := make([]byte, HeaderSize+len(payload))
	packet[0] = byte(messageType)<<messageTypeShift | groupID&groupMask
	packet[1] = opcodeID & opcodeMask
	packet[3] = byte(len(payload))
	copy(packet[HeaderSize:], payload)
	return packet, nil
}

// NewDataPacket builds a data packet. For data packets the low nibble
// of byte 0 carries the data packet format and byte 1 is unused by the
// framing; both are taken as given.
func NewDataPacket(packetFormat, byte1 uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxDataPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds data limit %d", ErrPayloadTooLarge, len(payload), MaxDataPayload)
	}
	packet := make([]byte, HeaderSize+len(payload))
	packet[0] = packetFormat & groupMask
	packet[1] = byte1
	binary.LittleEndian.PutUint16(packet[2:4], uint16(len(payload)))
	copy(packet[HeaderSize:], payload)
	return packet, nil
}

// DeviceResetCommand returns CORE_DEVICE_RESET_CMD with reset type
// UWBS: 20 00 00 01 00. The bridge sends it on close to stop every
// running activity on the subsystem, since closing the session does
// not power the device down.
func DeviceResetCommand() []byte {
	return []byte{
		byte(MessageTypeCommand)<<messageTypeShift | GroupCore,
		OpcodeDeviceReset,
		0x00,
		0x01,
		ResetConfigUWBS,
	}
}
