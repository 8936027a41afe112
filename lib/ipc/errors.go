// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/uwbbridge/chip"
	"github.com/bureau-foundation/uwbbridge/lib/service"
)

// Error codes carried in responses and result notifications.
const (
	CodeIllegalState   = "illegal_state"
	CodeTransport      = "transport"
	CodeRemoteGone     = "remote_gone"
	CodeUnimplemented  = service.CodeUnimplemented
	CodeUnknownChip    = "unknown_chip"
	CodeInvalidRequest = service.CodeInvalidRequest
)

var (
	// ErrUnknownChip reports a request naming a chip the daemon does
	// not serve.
	ErrUnknownChip = errors.New("ipc: unknown chip")

	// ErrInvalidRequest reports a request the daemon could not decode
	// or that is missing a required field.
	ErrInvalidRequest = errors.New("ipc: invalid request")
)

var codes = []struct {
	sentinel error
	code     string
}{
	{chip.ErrIllegalState, CodeIllegalState},
	{chip.ErrTransport, CodeTransport},
	{chip.ErrRemoteGone, CodeRemoteGone},
	{chip.ErrUnimplemented, CodeUnimplemented},
	{ErrUnknownChip, CodeUnknownChip},
	{ErrInvalidRequest, CodeInvalidRequest},
}

// codedError attaches a wire code to an error without changing its
// message or its chain.
type codedError struct {
	code string
	err  error
}

func (e *codedError) Error() string     { return e.err.Error() }
func (e *codedError) Unwrap() error     { return e.err }
func (e *codedError) ErrorCode() string { return e.code }

// Code returns the wire code for err, or "" if it matches none.
func Code(err error) string {
	for _, entry := range codes {
		if errors.Is(err, entry.sentinel) {
			return entry.code
		}
	}
	return ""
}

// WrapError attaches the wire code for err so the socket server puts it
// in the response. Errors with no code are returned unchanged.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	code := Code(err)
	if code == "" {
		return err
	}
	return &codedError{code: code, err: err}
}

// DecodeError rebuilds an error from a wire code and message. Known
// codes wrap their sentinel, so errors.Is works across the socket.
func DecodeError(code, message string) error {
	for _, entry := range codes {
		if entry.code == code {
			return fmt.Errorf("%w: %s", entry.sentinel, message)
		}
	}
	if code == "" {
		return errors.New(message)
	}
	return fmt.Errorf("%s: %s", code, message)
}

// FromServiceError converts a *service.ServiceError into its sentinel
// form. Other errors are returned unchanged.
func FromServiceError(err error) error {
	var serviceError *service.ServiceError
	if !errors.As(err, &serviceError) {
		return err
	}
	return fmt.Errorf("%s: %w", serviceError.Action, DecodeError(serviceError.Code, serviceError.Message))
}
