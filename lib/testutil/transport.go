// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"io"
	"sync"
)

// PipeTransport is an in-memory chip transport. Reads block until the
// test injects bytes, so a reader on it behaves like one waiting on a
// quiet serial line. Writes are recorded and published on Written.
type PipeTransport struct {
	reader *io.PipeReader
	feed   *io.PipeWriter

	mu       sync.Mutex
	writes   [][]byte
	writeErr error

	written chan []byte
}

// NewPipeTransport returns an idle transport.
func NewPipeTransport() *PipeTransport {
	reader, feed := io.Pipe()
	return &PipeTransport{
		reader:  reader,
		feed:    feed,
		written: make(chan []byte, 256),
	}
}

func (p *PipeTransport) Read(buffer []byte) (int, error) {
	return p.reader.Read(buffer)
}

// Write records a copy of data. It fails without recording if
// FailWrites has been called.
func (p *PipeTransport) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.writeErr != nil {
		err := p.writeErr
		p.mu.Unlock()
		return 0, err
	}
	frame := append([]byte(nil), data...)
	p.writes = append(p.writes, frame)
	p.mu.Unlock()

	select {
	case p.written <- frame:
	default:
	}
	return len(data), nil
}

// Close fails pending and future reads with io.EOF.
func (p *PipeTransport) Close() error {
	return p.feed.Close()
}

// Inject feeds bytes to the reader. It returns once the reader has
// consumed them all, or with an error if the transport is closed.
func (p *PipeTransport) Inject(data []byte) error {
	_, err := p.feed.Write(data)
	return err
}

// FailReads makes pending and future reads return err.
func (p *PipeTransport) FailReads(err error) {
	_ = p.feed.CloseWithError(err)
}

// FailWrites makes subsequent writes return err. A nil err restores
// normal writes.
func (p *PipeTransport) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// Writes returns every successful write so far, in order.
func (p *PipeTransport) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.writes...)
}

// Written publishes each successful write. Writes made while the
// channel is full are still recorded by Writes.
func (p *PipeTransport) Written() <-chan []byte {
	return p.written
}
