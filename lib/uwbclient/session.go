// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package uwbclient

import (
	"time"

	"github.com/bureau-foundation/uwbbridge/lib/ipc"
	"github.com/bureau-foundation/uwbbridge/lib/service"
)

// Session is an open chip binding. It is not safe for concurrent use
// by multiple readers; Close may be called from any goroutine.
type Session struct {
	chip    string
	stream  *service.Stream
	pending []ipc.Notification

	// IdleTimeout, if positive, bounds the wait in Next. Heartbeats
	// reset it, so it should exceed the daemon's heartbeat interval.
	IdleTimeout time.Duration
}

// Chip returns the name of the chip the session is bound to.
func (s *Session) Chip() string {
	return s.chip
}

// Next returns the next UCI frame or HAL event for this session.
// Heartbeats are consumed here and never returned. Next returns io.EOF
// once the daemon has released the binding and ended the stream.
func (s *Session) Next() (ipc.Notification, error) {
	if len(s.pending) > 0 {
		notification := s.pending[0]
		s.pending = s.pending[1:]
		return notification, nil
	}
	for {
		if s.IdleTimeout > 0 {
			s.stream.SetReadDeadline(time.Now().Add(s.IdleTimeout))
		}
		var notification ipc.Notification
		if err := s.stream.Recv(&notification); err != nil {
			return ipc.Notification{}, err
		}
		if notification.Type == ipc.NotificationHeartbeat {
			continue
		}
		return notification, nil
	}
}

// Close drops the connection. If the session still holds the chip, the
// daemon sees the client as gone and releases it.
func (s *Session) Close() error {
	return s.stream.Close()
}
