// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package uci

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed length of every UCI packet header.
const HeaderSize = 4

// Maximum payload sizes representable by each header layout.
const (
	MaxControlPayload = 0xFF
	MaxDataPayload    = 0xFFFF
)

const (
	messageTypeMask  = 0b1110_0000
	messageTypeShift = 5
	boundaryFlag     = 0b0001_0000
	groupMask        = 0b0000_1111
	opcodeMask       = 0b0011_1111
)

var (
	// ErrMalformedHeader reports a header that cannot describe a
	// packet: too short, a reserved message type, or a length that
	// disagrees with the buffer it heads.
	ErrMalformedHeader = errors.New("uci: malformed header")

	// ErrPayloadTooLarge reports a payload that does not fit the
	// length field of the requested packet layout.
	ErrPayloadTooLarge = errors.New("uci: payload too large")
)

// MessageType is the 3-bit MT field of byte 0.
type MessageType uint8

const (
	MessageTypeData         MessageType = 0b000
	MessageTypeCommand      MessageType = 0b001
	MessageTypeResponse     MessageType = 0b010
	MessageTypeNotification MessageType = 0b011
)

// String returns the short name used in frame logs.
func (t MessageType) String() string {
	switch t {
	case MessageTypeData:
		return "data"
	case MessageTypeCommand:
		return "cmd"
	case MessageTypeResponse:
		return "rsp"
	case MessageTypeNotification:
		return "ntf"
	default:
		return fmt.Sprintf("mt(%d)", uint8(t))
	}
}

// Reserved reports whether t is one of the message types (4-7) that
// UCI does not define.
func (t MessageType) Reserved() bool {
	return t > MessageTypeNotification
}

// Group identifiers used by the core UCI specification and the
// Android vendor extension.
const (
	GroupCore           uint8 = 0x0
	GroupSessionConfig  uint8 = 0x1
	GroupSessionControl uint8 = 0x2
	GroupDataControl    uint8 = 0x3
	GroupVendorAndroid  uint8 = 0xC
	GroupTest           uint8 = 0xD
)

// Opcodes in GroupCore.
const (
	OpcodeDeviceReset   uint8 = 0x00
	OpcodeDeviceStatus  uint8 = 0x01
	OpcodeGetDeviceInfo uint8 = 0x02
	OpcodeGetCapsInfo   uint8 = 0x03
	OpcodeSetConfig     uint8 = 0x04
	OpcodeGetConfig     uint8 = 0x05
	OpcodeGenericError  uint8 = 0x07
)

// MessageTypeOf extracts the message type from the first header byte.
func MessageTypeOf(b0 byte) MessageType {
	return MessageType((b0 & messageTypeMask) >> messageTypeShift)
}

// PayloadLength returns the number of payload bytes that follow the
// given header. Only the first HeaderSize bytes are examined. Data
// packets carry a little-endian uint16 in bytes 2-3; every other type
// carries a single length byte at offset 3.
func PayloadLength(header []byte) (int, error) {
	if len(header) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes, need %d", ErrMalformedHeader, len(header), HeaderSize)
	}
	if MessageTypeOf(header[0]) == MessageTypeData {
		return int(binary.LittleEndian.Uint16(header[2:4])), nil
	}
	return int(header[3]), nil
}

// Header is the decoded form of a UCI packet header.
type Header struct {
	MessageType MessageType

	// Segmented is the packet boundary flag: set when more segments
	// of the same message follow this packet.
	Segmented bool

	GroupID  uint8
	OpcodeID uint8

	PayloadLength int
}

// ParseHeader decodes the first HeaderSize bytes of b. Reserved
// message types are decoded, not rejected; see [ParseFrame] for the
// strict form.
func ParseHeader(b []byte) (Header, error) {
	length, err := PayloadLength(b)
	if err != nil {
		return Header{}, err
	}
	return Header{
		MessageType:   MessageTypeOf(b[0]),
		Segmented:     b[0]&boundaryFlag != 0,
		GroupID:       b[0] & groupMask,
		OpcodeID:      b[1] & opcodeMask,
		PayloadLength: length,
	}, nil
}

// String renders the header the way frame logs print it, e.g.
// "cmd gid=0x0 oid=0x00 len=1".
func (h Header) String() string {
	segmented := ""
	if h.Segmented {
		segmented = " pbf"
	}
	return fmt.Sprintf("%s gid=0x%x oid=0x%02x len=%d%s",
		h.MessageType, h.GroupID, h.OpcodeID, h.PayloadLength, segmented)
}
