// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/uwbbridge/chip"
	"github.com/bureau-foundation/uwbbridge/lib/clock"
	"github.com/bureau-foundation/uwbbridge/lib/codec"
)

// DefaultMaxRecords is the batch size used when WriterConfig.MaxRecords
// is zero.
const DefaultMaxRecords = 512

// MaxRecordsLimit is the largest accepted WriterConfig.MaxRecords.
const MaxRecordsLimit = 1 << 16

const (
	// maxBatchBytes caps the estimated encoded size of one chunk body.
	// A single record never exceeds it, so chunks stay below
	// maxChunkSize whatever MaxRecords is.
	maxBatchBytes = 16 << 20

	// recordOverhead over-approximates the CBOR map keys and integers
	// around a record's chip name and frame.
	recordOverhead = 64
)

// WriterConfig holds the parameters for NewWriter.
type WriterConfig struct {
	Compression CompressionTag

	// FlushInterval writes any pending records at this period. Zero
	// disables timed flushes.
	FlushInterval time.Duration

	// MaxRecords writes a chunk as soon as this many records are
	// pending. Chunks are also cut when their encoded size nears
	// maxBatchBytes.
	MaxRecords int

	// Clock drives timed flushes and Tap timestamps. Nil means
	// clock.Real().
	Clock clock.Clock

	// Logger receives failures from Tap and background flushes, which
	// have no caller to return them to. Nil means slog.Default().
	Logger *slog.Logger
}

// Writer appends records to a capture stream. It is safe for
// concurrent use. The first write error is sticky: every later call
// returns it.
type Writer struct {
	output io.Writer
	config WriterConfig

	// writeMu serializes chunk writes. It is taken before mu, so batches
	// reach output in the order they were taken from pending.
	writeMu sync.Mutex

	mu           sync.Mutex
	pending      []Record
	pendingBytes int
	err          error
	closed       bool

	// full wakes the flush loop when Tap fills a batch.
	full     chan struct{}
	stop     chan struct{}
	loopDone chan struct{}
}

// NewWriter writes the file magic to output and returns a writer. The
// caller keeps ownership of output; Close does not close it.
func NewWriter(output io.Writer, config WriterConfig) (*Writer, error) {
	if config.MaxRecords <= 0 {
		config.MaxRecords = DefaultMaxRecords
	}
	if config.MaxRecords > MaxRecordsLimit {
		return nil, fmt.Errorf("capture: max records %d exceeds %d", config.MaxRecords, MaxRecordsLimit)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Compression > CompressionZstd {
		return nil, fmt.Errorf("capture: unsupported compression %s", config.Compression)
	}

	if _, err := io.WriteString(output, Magic); err != nil {
		return nil, fmt.Errorf("capture: writing magic: %w", err)
	}

	w := &Writer{
		output:   output,
		config:   config,
		full:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	var ticker *clock.Ticker
	if config.FlushInterval > 0 {
		ticker = config.Clock.NewTicker(config.FlushInterval)
	}
	go w.flushLoop(ticker)
	return w, nil
}

// flushLoop writes batches filled by Tap and, when ticker is non-nil,
// whatever is pending at each tick.
func (w *Writer) flushLoop(ticker *clock.Ticker) {
	defer close(w.loopDone)
	var ticks <-chan time.Time
	if ticker != nil {
		defer ticker.Stop()
		ticks = ticker.C
	}
	for {
		select {
		case <-ticks:
		case <-w.full:
		case <-w.stop:
			return
		}
		if err := w.flush(); err != nil {
			w.config.Logger.Error("capture flush failed", "error", err)
			return
		}
	}
}

// Append queues record, writing chunks if the batch is full. The
// record's Frame is retained; callers must not modify it afterwards.
func (w *Writer) Append(record Record) error {
	full, err := w.queue(record)
	if err != nil || !full {
		return err
	}
	return w.flush()
}

// Tap returns a chip.Tap that records every frame of chipName. The tap
// only queues; full batches are written by the flush loop.
func (w *Writer) Tap(chipName string) chip.Tap {
	return func(direction chip.Direction, frame []byte) {
		record := Record{
			TimeNS:    w.config.Clock.Now().UnixNano(),
			Chip:      chipName,
			Direction: direction,
			Frame:     append([]byte(nil), frame...),
		}
		full, err := w.queue(record)
		if err != nil {
			if !errors.Is(err, ErrClosed) {
				w.config.Logger.Warn("capturing frame failed", "chip", chipName, "error", err)
			}
			return
		}
		if full {
			select {
			case w.full <- struct{}{}:
			default:
			}
		}
	}
}

// queue adds record to the pending batch and reports whether the batch
// is due to be written.
func (w *Writer) queue(record Record) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false, ErrClosed
	}
	if w.err != nil {
		return false, w.err
	}
	w.pending = append(w.pending, record)
	w.pendingBytes += encodedSize(record)
	return len(w.pending) >= w.config.MaxRecords || w.pendingBytes >= maxBatchBytes, nil
}

// Flush writes pending records. It does nothing if no records are
// pending.
func (w *Writer) Flush() error {
	return w.flush()
}

func (w *Writer) flush() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	if w.err != nil {
		err := w.err
		w.mu.Unlock()
		return err
	}
	batch := w.pending
	w.pending, w.pendingBytes = nil, 0
	w.mu.Unlock()

	for len(batch) > 0 {
		count := chunkLength(batch, w.config.MaxRecords)
		if err := w.writeChunk(batch[:count]); err != nil {
			w.mu.Lock()
			if w.err == nil {
				w.err = err
			}
			w.mu.Unlock()
			return err
		}
		batch = batch[count:]
	}
	return nil
}

func (w *Writer) writeChunk(records []Record) error {
	chunk, err := encodeChunk(records, w.config.Compression)
	if err != nil {
		return err
	}
	if _, err := w.output.Write(chunk); err != nil {
		return fmt.Errorf("capture: writing chunk: %w", err)
	}
	return nil
}

// chunkLength returns how many leading records fit in one chunk. It is
// at least one.
func chunkLength(records []Record, maxRecords int) int {
	size := 0
	for i, record := range records {
		if i == maxRecords {
			return i
		}
		size += encodedSize(record)
		if i > 0 && size > maxBatchBytes {
			return i
		}
	}
	return len(records)
}

func encodedSize(record Record) int {
	return len(record.Frame) + len(record.Chip) + recordOverhead
}

// Close stops the flush loop and writes any pending records. It is
// safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stop)
	<-w.loopDone
	return w.flush()
}

// encodeChunk returns the header and stored body of one chunk as a
// single buffer, so a chunk reaches the output in one Write.
func encodeChunk(records []Record, compression CompressionTag) ([]byte, error) {
	body, err := codec.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("capture: encoding records: %w", err)
	}

	tag := compression
	stored, err := compressBody(body, tag)
	if err == errIncompressible {
		tag, stored = CompressionNone, body
	} else if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	digest := blake3.Sum256(body)
	chunk := make([]byte, chunkHeaderSize+len(stored))
	chunk[0] = byte(tag)
	binary.LittleEndian.PutUint32(chunk[1:5], uint32(len(body)))
	binary.LittleEndian.PutUint32(chunk[5:9], uint32(len(stored)))
	copy(chunk[9:chunkHeaderSize], digest[:])
	copy(chunk[chunkHeaderSize:], stored)
	return chunk, nil
}
