// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
)

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("reading: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"epipe", &net.OpError{Op: "write", Err: syscall.EPIPE}, true},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"other errno", syscall.EACCES, false},
		{"unexpected eof", io.ErrUnexpectedEOF, false},
		{"plain", errors.New("boom"), false},
	}
	for _, test := range tests {
		if got := IsExpectedCloseError(test.err); got != test.want {
			t.Errorf("%s: IsExpectedCloseError(%v) = %v, want %v", test.name, test.err, got, test.want)
		}
	}
}
