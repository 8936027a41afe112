// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chip

import (
	"errors"
	"io"
)

var errAlreadyBound = errors.New("a client is already bound")

// binding is an open session. The callback and the unlink handle for
// its death watch live together, so a chip either has both or neither.
type binding struct {
	client Client
	unlink func()

	// generation identifies the Open that created this binding. The
	// death recipient armed by that Open carries the same number and
	// clears the binding only if it still matches.
	generation uint64
}

// session is the chip's mutable state. All access goes through the
// chip lock; session itself does no synchronization.
type session struct {
	active    *binding
	transport io.Writer
}

func (s *session) bind(b *binding) error {
	if s.active != nil {
		return errAlreadyBound
	}
	s.active = b
	return nil
}

// unbind clears the binding and returns what was there, or nil if the
// session was already closed.
func (s *session) unbind() *binding {
	b := s.active
	s.active = nil
	return b
}

func (s *session) current() *binding {
	return s.active
}

func (s *session) writer() io.Writer {
	return s.transport
}
