// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/uwbbridge/chip"
	"github.com/bureau-foundation/uwbbridge/lib/codec"
	"github.com/bureau-foundation/uwbbridge/lib/ipc"
	"github.com/bureau-foundation/uwbbridge/lib/netutil"
)

// errStreamClosed is returned by LinkToDeath once the client's
// connection has already gone.
var errStreamClosed = errors.New("stream connection closed")

// streamClient is the chip.Client for one "open" connection. The chip's
// frames and events become notifications on the connection, and the
// connection's read side is the death watch: the client never writes
// after its request, so a read returning means the client is gone.
type streamClient struct {
	conn         net.Conn
	encoder      *codec.Encoder
	writeTimeout time.Duration
	logger       *slog.Logger

	// writeMu serializes notifications. The chip delivers under its
	// own lock, but heartbeats and the open result come from the
	// stream handler.
	writeMu sync.Mutex

	// gone is closed when the read side of conn returns.
	gone chan struct{}

	mu        sync.Mutex
	recipient func()
	// released is closed by the unlink function the chip calls when
	// it drops the binding.
	released     chan struct{}
	releasedOnce sync.Once
}

var _ chip.Client = (*streamClient)(nil)

func newStreamClient(conn net.Conn, writeTimeout time.Duration, logger *slog.Logger) *streamClient {
	return &streamClient{
		conn:         conn,
		encoder:      codec.NewEncoder(conn),
		writeTimeout: writeTimeout,
		logger:       logger,
		gone:         make(chan struct{}),
		released:     make(chan struct{}),
	}
}

// watch reads conn until it fails, then fires the death recipient if
// one is linked. It runs for the life of the connection.
func (s *streamClient) watch() {
	_, err := io.Copy(io.Discard, s.conn)
	if err != nil && !netutil.IsExpectedCloseError(err) {
		s.logger.Debug("stream read failed", "error", err)
	}

	s.mu.Lock()
	close(s.gone)
	recipient := s.recipient
	s.recipient = nil
	s.mu.Unlock()

	if recipient != nil {
		recipient()
	}
}

func (s *streamClient) LinkToDeath(recipient func()) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.gone:
		return nil, errStreamClosed
	default:
	}
	s.recipient = recipient
	return s.unlink, nil
}

func (s *streamClient) unlink() {
	s.mu.Lock()
	s.recipient = nil
	s.mu.Unlock()
	s.releasedOnce.Do(func() { close(s.released) })
}

func (s *streamClient) OnUCIMessage(frame []byte) error {
	return s.send(ipc.Notification{Type: ipc.NotificationUCI, Frame: frame})
}

func (s *streamClient) OnHALEvent(event chip.Event, status chip.Status) error {
	return s.send(ipc.Notification{Type: ipc.NotificationEvent, Event: event, Status: status})
}

// send writes one notification. A client that cannot take it within
// the write timeout has its connection closed, which the watch then
// reports as a death.
func (s *streamClient) send(notification ipc.Notification) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.encoder.Encode(notification); err != nil {
		s.conn.Close()
		return err
	}
	return nil
}

// handleOpen serves the "open" stream. The first values on the stream
// are whatever the chip reports while opening (the open-complete
// event), followed by a result notification. On success the stream then
// carries frames, events, and heartbeats until the binding is released
// or the client disconnects.
func (d *daemon) handleOpen(ctx context.Context, raw []byte, conn net.Conn) {
	client := newStreamClient(conn, d.stream.WriteTimeout, d.logger)

	controller, err := d.decodeChip(raw)
	if err != nil {
		client.sendResult(err)
		return
	}
	logger := d.logger.With("chip", controller.Name())

	go client.watch()

	openCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	err = controller.Open(openCtx, client)
	cancel()
	if err != nil {
		logger.Debug("open refused", "error", err)
		client.sendResult(ipc.WrapError(err))
		return
	}
	if err := client.sendResult(nil); err != nil {
		// The watch fires the recipient once the server closes conn.
		logger.Debug("writing open result failed", "error", err)
		return
	}

	heartbeat := d.clock.NewTicker(d.stream.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-client.released:
			logger.Debug("binding released, ending stream")
			return
		case <-client.gone:
			logger.Debug("client disconnected")
			return
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := client.send(ipc.Notification{Type: ipc.NotificationHeartbeat}); err != nil {
				logger.Debug("heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (s *streamClient) sendResult(err error) error {
	result := ipc.Notification{Type: ipc.NotificationResult}
	if err != nil {
		result.Code = ipc.Code(err)
		result.Error = err.Error()
	}
	return s.send(result)
}
