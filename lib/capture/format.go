// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/uwbbridge/chip"
)

// Magic opens every capture file.
const Magic = "UWBCAP01"

const (
	digestSize      = 32
	chunkHeaderSize = 1 + 4 + 4 + digestSize

	// maxChunkSize bounds both sizes in a chunk header. Writer cuts
	// chunks at maxBatchBytes; a larger value means the header is
	// garbage.
	maxChunkSize = 64 << 20
)

var (
	// ErrBadMagic reports a file that is not a capture file.
	ErrBadMagic = errors.New("capture: not a capture file")

	// ErrCorruptChunk reports a chunk whose header, body, or digest is
	// inconsistent.
	ErrCorruptChunk = errors.New("capture: corrupt chunk")

	// ErrClosed reports use of a closed Writer.
	ErrClosed = errors.New("capture: writer is closed")
)

// Record is one frame crossing a chip's transport.
type Record struct {
	// TimeNS is the capture time in Unix nanoseconds.
	TimeNS    int64          `json:"time_ns"`
	Chip      string         `json:"chip"`
	Direction chip.Direction `json:"direction"`
	Frame     []byte         `json:"frame"`
}

// CompressionTag identifies how a chunk body is stored. The values are
// part of the file format.
type CompressionTag uint8

const (
	CompressionNone CompressionTag = 0
	CompressionLZ4  CompressionTag = 1
	CompressionZstd CompressionTag = 2
)

func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseCompressionTag parses "none", "lz4", or "zstd".
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("capture: unknown compression %q", name)
	}
}

// Chunk is one decoded chunk.
type Chunk struct {
	Compression CompressionTag
	Size        int
	StoredSize  int
	Records     []Record
}
