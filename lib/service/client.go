// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/uwbbridge/lib/codec"
)

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long Call waits for a response when ctx
// has no earlier deadline.
const responseReadTimeout = 45 * time.Second

const maxResponseSize = 1024 * 1024

// ServiceError is returned when the server answers ok=false.
type ServiceError struct {
	Action  string
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("service error on %q (%s): %s", e.Action, e.Code, e.Message)
	}
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// ErrorCode returns the server's code, so a ServiceError relayed by
// another server keeps it.
func (e *ServiceError) ErrorCode() string {
	return e.Code
}

// ServiceClient talks to a SocketServer. Call opens a connection per
// request; OpenStream keeps one open.
type ServiceClient struct {
	socketPath string
}

// NewServiceClient returns a client for the socket at socketPath. No
// connection is made until the first call.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{socketPath: socketPath}
}

// SocketPath returns the path the client dials.
func (c *ServiceClient) SocketPath() string {
	return c.socketPath
}

// Call sends one request and decodes the response.
//
// fields holds the action's own request fields; Call adds "action".
// On success, if result is non-nil and the response has data, the data
// is decoded into result. On failure Call returns a *ServiceError.
// Connection and encoding failures are plain errors.
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	response, err := c.send(ctx, buildRequest(action, fields))
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &ServiceError{
			Action:  action,
			Code:    response.Code,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

func buildRequest(action string, fields map[string]any) map[string]any {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action
	return request
}

func (c *ServiceClient) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	deadline := time.Now().Add(responseReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetReadDeadline(deadline)

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}

// Stream is an open streaming connection. Values are read with Recv;
// the client never writes after the request, and closing the stream is
// how it tells the server it has gone.
type Stream struct {
	conn    net.Conn
	decoder *codec.Decoder
}

// OpenStream sends a request for a streaming action and returns the
// connection for reading. ctx bounds the dial only.
func (c *ServiceClient) OpenStream(ctx context.Context, action string, fields map[string]any) (*Stream, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("opening stream %q on %s: connecting: %w", action, c.socketPath, err)
	}
	if err := codec.NewEncoder(conn).Encode(buildRequest(action, fields)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening stream %q on %s: writing request: %w", action, c.socketPath, err)
	}
	return &Stream{conn: conn, decoder: codec.NewDecoder(conn)}, nil
}

// Recv decodes the next value from the stream into v. It returns
// io.EOF when the server ends the stream.
func (s *Stream) Recv(v any) error {
	return s.decoder.Decode(v)
}

// SetReadDeadline bounds the next Recv calls.
func (s *Stream) SetReadDeadline(deadline time.Time) error {
	return s.conn.SetReadDeadline(deadline)
}

// Close ends the stream. The server observes it as the client going
// away.
func (s *Stream) Close() error {
	return s.conn.Close()
}
