// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/uwbbridge/lib/codec"
)

// ActionFunc processes one request. raw is the whole CBOR request,
// including its "action" field; the handler decodes its own fields.
//
// A nil result produces {ok: true}. A non-nil result is encoded into
// the response's "data" field. An error produces {ok: false} with the
// error's message and, if it implements Coder, its code.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// StreamFunc takes over a connection after its request has been read.
// The handler owns conn until it returns; the server closes it
// afterwards. Handlers must return promptly once ctx is cancelled.
type StreamFunc func(ctx context.Context, raw []byte, conn net.Conn)

// Coder is implemented by errors that carry a machine-readable code
// for the response envelope.
type Coder interface {
	ErrorCode() string
}

// Codes set by the server itself.
const (
	CodeUnimplemented  = "unimplemented"
	CodeInvalidRequest = "invalid_request"
	CodeInternal       = "internal"
)

// Response is the envelope of every request-response reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Code  string           `cbor:"code,omitempty"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer serves a CBOR protocol on a Unix socket. A connection
// carries one request. Actions registered with Handle get exactly one
// response and the connection closes; actions registered with
// HandleStream keep the connection for as long as the handler runs.
type SocketServer struct {
	socketPath     string
	handlers       map[string]ActionFunc
	streamHandlers map[string]StreamFunc
	logger         *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	activeConnections sync.WaitGroup
}

// NewSocketServer creates a server that will listen on socketPath.
// Register actions before calling Serve.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketServer{
		socketPath:     socketPath,
		handlers:       make(map[string]ActionFunc),
		streamHandlers: make(map[string]StreamFunc),
		logger:         logger,
		ready:          make(chan struct{}),
	}
}

// Handle registers a request-response action. Panics if the action is
// already registered in either form.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	s.checkUnregistered(action)
	s.handlers[action] = handler
}

// HandleStream registers a streaming action. Panics if the action is
// already registered in either form.
func (s *SocketServer) HandleStream(action string, handler StreamFunc) {
	s.checkUnregistered(action)
	s.streamHandlers[action] = handler
}

func (s *SocketServer) checkUnregistered(action string) {
	_, plain := s.handlers[action]
	_, stream := s.streamHandlers[action]
	if plain || stream {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
}

// Ready is closed once the socket is accepting connections.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight handlers (stream handlers included) to return.
//
// A stale socket file at the path is removed before listening, and
// the socket file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "path", s.socketPath)
	s.readyOnce.Do(func() { close(s.ready) })

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout bounds how long a client may take to send its request.
const readTimeout = 30 * time.Second

// writeTimeout bounds writing a response.
const writeTimeout = 10 * time.Second

// maxRequestSize bounds one CBOR request. The largest legitimate
// request carries a 64 KiB UCI data packet.
const maxRequestSize = 1024 * 1024

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, CodeInvalidRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, CodeInvalidRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, CodeInvalidRequest, "missing required field: action")
		return
	}

	if handler, exists := s.streamHandlers[header.Action]; exists {
		conn.SetReadDeadline(time.Time{})
		s.logger.Debug("stream started", "action", header.Action)
		handler(ctx, []byte(raw), conn)
		s.logger.Debug("stream ended", "action", header.Action)
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, CodeUnimplemented, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed",
			"action", header.Action,
			"error", err,
		)
		code := ""
		var coder Coder
		if errors.As(err, &coder) {
			code = coder.ErrorCode()
		}
		s.writeError(conn, code, err.Error())
		return
	}

	s.writeSuccess(conn, result)
}

// writeError sends {ok: false, code, error}. Write failures are only
// logged: the connection is closing either way.
func (s *SocketServer) writeError(conn net.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{
		OK:    false,
		Code:  code,
		Error: message,
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func (s *SocketServer) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, CodeInternal, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
