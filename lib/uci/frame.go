// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package uci

import (
	"encoding/hex"
	"fmt"
	"io"
)

// ReadFrame reads one complete packet from r: exactly HeaderSize
// header bytes, then exactly the payload length the header declares.
// The returned slice is freshly allocated and holds header and payload
// contiguously.
//
// ReadFrame blocks until the whole packet is available. A stream that
// ends between packets returns an error wrapping io.EOF; one that ends
// inside a packet returns an error wrapping io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading uci header: %w", err)
	}

	length, err := PayloadLength(header[:])
	if err != nil {
		return nil, err
	}

	frame := make([]byte, HeaderSize+length)
	copy(frame, header[:])
	if length > 0 {
		if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("reading uci payload (%d bytes): %w", length, err)
		}
	}
	return frame, nil
}

// ParseFrame validates that b is exactly one well-formed packet and
// returns its header. Unlike ReadFrame it rejects reserved message
// types and any length disagreement between header and buffer.
func ParseFrame(b []byte) (Header, error) {
	header, err := ParseHeader(b)
	if err != nil {
		return Header{}, err
	}
	if header.MessageType.Reserved() {
		return Header{}, fmt.Errorf("%w: reserved message type %d", ErrMalformedHeader, header.MessageType)
	}
	if want := HeaderSize + header.PayloadLength; len(b) != want {
		return Header{}, fmt.Errorf("%w: header declares %d bytes, buffer has %d",
			ErrMalformedHeader, want, len(b))
	}
	return header, nil
}

// Describe summarizes a frame for debug logs: the decoded header
// followed by the payload in hex. Frames too short to carry a header
// are rendered as raw hex.
func Describe(frame []byte) string {
	header, err := ParseHeader(frame)
	if err != nil {
		return "raw " + hex.EncodeToString(frame)
	}
	payload := frame[HeaderSize:]
	if len(payload) == 0 {
		return header.String()
	}
	return header.String() + " " + hex.EncodeToString(payload)
}
