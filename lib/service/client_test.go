// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bureau-foundation/uwbbridge/lib/codec"
	"github.com/bureau-foundation/uwbbridge/lib/testutil"
)

func TestClientCallDecodesResult(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("get-supported-uci-version", func(ctx context.Context, raw []byte) (any, error) {
			var request struct {
				Chip string `cbor:"chip"`
			}
			codec.Unmarshal(raw, &request)
			if request.Chip != "uwb0" {
				return nil, errors.New("wrong chip")
			}
			return map[string]int32{"version": 1}, nil
		})
	})

	var result struct {
		Version int32 `cbor:"version"`
	}
	err := NewServiceClient(socketPath).Call(context.Background(), "get-supported-uci-version", map[string]any{"chip": "uwb0"}, &result)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Version != 1 {
		t.Fatalf("version = %d, want 1", result.Version)
	}
}

func TestClientCallNilResult(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
			return map[string]bool{"open": true}, nil
		})
	})
	if err := NewServiceClient(socketPath).Call(context.Background(), "status", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
}

func TestClientCallServiceError(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("close", func(ctx context.Context, raw []byte) (any, error) {
			return nil, codedError{code: "illegal_state"}
		})
	})

	err := NewServiceClient(socketPath).Call(context.Background(), "close", nil, nil)
	var serviceError *ServiceError
	if !errors.As(err, &serviceError) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
	if serviceError.Action != "close" || serviceError.Code != "illegal_state" || serviceError.Message != "chip is closed" {
		t.Fatalf("service error = %+v", serviceError)
	}
}

func TestClientCallUnknownAction(t *testing.T) {
	socketPath := startServer(t, func(*SocketServer) {})

	err := NewServiceClient(socketPath).Call(context.Background(), "flash-firmware", nil, nil)
	var serviceError *ServiceError
	if !errors.As(err, &serviceError) || serviceError.ErrorCode() != CodeUnimplemented {
		t.Fatalf("expected unimplemented service error, got %v", err)
	}
}

func TestClientCallConnectionRefused(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "absent.sock")
	err := NewServiceClient(socketPath).Call(context.Background(), "status", nil, nil)
	if err == nil {
		t.Fatal("expected error for missing socket")
	}
	var serviceError *ServiceError
	if errors.As(err, &serviceError) {
		t.Fatalf("connection failure reported as a service error: %v", err)
	}
}

func TestClientConcurrentCalls(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("get-name", func(ctx context.Context, raw []byte) (any, error) {
			var request struct {
				Chip string `cbor:"chip"`
			}
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			return map[string]string{"name": request.Chip}, nil
		})
	})
	client := NewServiceClient(socketPath)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chip := testutil.UniqueID("uwb")
			var result map[string]string
			if err := client.Call(context.Background(), "get-name", map[string]any{"chip": chip}, &result); err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			if result["name"] != chip {
				t.Errorf("call %d: name = %q, want %q", i, result["name"], chip)
			}
		}()
	}
	wg.Wait()
}
