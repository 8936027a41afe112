// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/uwbbridge/lib/codec"
)

// Reader reads chunks from a capture stream.
type Reader struct {
	input  io.Reader
	offset int64
}

// NewReader checks the file magic and returns a reader positioned at
// the first chunk.
func NewReader(input io.Reader) (*Reader, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(input, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadMagic
		}
		return nil, fmt.Errorf("capture: reading magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadMagic, magic)
	}
	return &Reader{input: input, offset: int64(len(Magic))}, nil
}

// Next returns the next chunk. It returns io.EOF after the last
// complete chunk, and an error wrapping ErrCorruptChunk if a chunk is
// truncated or fails verification.
func (r *Reader) Next() (*Chunk, error) {
	start := r.offset

	var header [chunkHeaderSize]byte
	read, err := io.ReadFull(r.input, header[:])
	r.offset += int64(read)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, r.corrupt(start, "reading header: %v", err)
	}

	tag := CompressionTag(header[0])
	size := binary.LittleEndian.Uint32(header[1:5])
	storedSize := binary.LittleEndian.Uint32(header[5:9])
	if size > maxChunkSize || storedSize > maxChunkSize {
		return nil, r.corrupt(start, "sizes %d/%d exceed limit", size, storedSize)
	}

	stored := make([]byte, storedSize)
	read, err = io.ReadFull(r.input, stored)
	r.offset += int64(read)
	if err != nil {
		return nil, r.corrupt(start, "reading %d-byte body: %v", storedSize, err)
	}

	body, err := decompressBody(stored, tag, int(size))
	if err != nil {
		return nil, r.corrupt(start, "%v", err)
	}
	digest := blake3.Sum256(body)
	if !bytes.Equal(digest[:], header[9:chunkHeaderSize]) {
		return nil, r.corrupt(start, "digest mismatch")
	}

	var records []Record
	if err := codec.Unmarshal(body, &records); err != nil {
		return nil, r.corrupt(start, "decoding records: %v", err)
	}
	return &Chunk{
		Compression: tag,
		Size:        int(size),
		StoredSize:  int(storedSize),
		Records:     records,
	}, nil
}

func (r *Reader) corrupt(offset int64, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrCorruptChunk, offset, fmt.Sprintf(format, args...))
}

// ReadAll returns every record in the stream, in order.
func ReadAll(input io.Reader) ([]Record, error) {
	reader, err := NewReader(input)
	if err != nil {
		return nil, err
	}
	var records []Record
	for {
		chunk, err := reader.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, chunk.Records...)
	}
}
