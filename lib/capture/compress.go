// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// errIncompressible means compression did not shrink the body; the
// caller stores it with CompressionNone instead.
var errIncompressible = errors.New("body is incompressible")

// zstd encoders and decoders are safe for concurrent EncodeAll and
// DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("capture: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxChunkSize))
	if err != nil {
		panic("capture: zstd decoder initialization failed: " + err.Error())
	}
}

func compressBody(body []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return body, nil
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(body)))
		written, err := lz4.CompressBlock(body, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock reports 0 for input it cannot shrink.
		if written == 0 || written >= len(body) {
			return nil, errIncompressible
		}
		return destination[:written], nil
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(body, nil)
		if len(compressed) >= len(body) {
			return nil, errIncompressible
		}
		return compressed, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", tag)
	}
}

func decompressBody(stored []byte, tag CompressionTag, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(stored) != size {
			return nil, fmt.Errorf("stored body is %d bytes, header says %d", len(stored), size)
		}
		return stored, nil
	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(stored, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", tag)
	}
}
